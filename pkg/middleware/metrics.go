package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_ckan_tool_calls_total",
		Help: "Total MCP tool calls by tool and status.",
	}, []string{"tool", "status"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcp_ckan_tool_call_duration_seconds",
		Help:    "MCP tool call duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})
)

// recordToolCall records the outcome of a finished tool call.
func recordToolCall(cc *CallContext) {
	status := "success"
	if !cc.Success {
		status = "error"
	}
	toolCallsTotal.WithLabelValues(cc.ToolName, status).Inc()
	toolCallDuration.WithLabelValues(cc.ToolName).Observe(cc.Duration.Seconds())
}
