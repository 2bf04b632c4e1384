package sched

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var workItemsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_sched_items_added",
	Help: "Number of events added to the scheduler",
}, []string{"ident"})

var workItemsActive = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_sched_items_active",
	Help: "Number of events which have started processing",
}, []string{"ident"})

var workItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_sched_items_processed",
	Help: "Number of events fully processed by the scheduler",
}, []string{"ident"})

var workersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "warden_sched_workers_active",
	Help: "Number of scheduler workers",
}, []string{"ident"})
