package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_events_processed",
	Help: "Number of events fully processed, by verdict action",
}, []string{"action"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_event_errors",
	Help: "Number of per-event pipeline faults, by stage",
}, []string{"stage"})

var duplicateEventCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_events_duplicate",
	Help: "Number of redelivered events dropped by audit de-duplication",
})

var eventDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "warden_event_duration_sec",
	Help:    "Total processing duration per event",
	Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
})

var policyFallbackCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_policy_fallbacks",
	Help: "Number of policy loads served from last-known-good or defaults",
})

var gatewayFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_gateway_call_failures",
	Help: "Number of gateway calls which exhausted retries, by call",
}, []string{"call"})

var raidNotifyCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_raid_notifications",
	Help: "Number of raid-suspected admin notifications sent",
})
