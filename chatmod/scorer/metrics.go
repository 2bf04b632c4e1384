package scorer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scorerAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_scorer_api_requests",
	Help: "Number of content scorer API requests, by HTTP status code",
}, []string{"status"})

var scorerAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "warden_scorer_api_duration_sec",
	Help: "Duration of content scorer API requests",
})
