package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var detectorOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_detector_outcomes",
	Help: "Number of detector evaluations, by detector kind and outcome (ok, abstain, timeout)",
}, []string{"detector", "outcome"})
