package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gatewayAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_gateway_api_requests",
	Help: "Number of action gateway API requests, by action path and HTTP status code",
}, []string{"path", "status"})

var gatewayAPIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "warden_gateway_api_duration_sec",
	Help: "Duration of action gateway API requests",
}, []string{"path"})
