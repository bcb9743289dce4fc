package ckan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mcp_ckan_upstream_requests_total",
	Help: "Total CKAN action API requests by action and outcome.",
}, []string{"action", "outcome"})

var upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "mcp_ckan_upstream_request_duration_seconds",
	Help:    "CKAN action API request duration in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"action"})
