package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulify_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rulify_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Engine metrics
	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulify_rule_evaluations_total",
			Help: "Total number of rule evaluations by outcome",
		},
		[]string{"metric_type", "outcome"}, // outcome: fired, skipped
	)

	RuleTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulify_rule_triggers_total",
			Help: "Total number of rule fires by action and result",
		},
		[]string{"action_type", "status"}, // status: success, failure
	)

	IngestMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulify_ingest_messages_total",
			Help: "Total number of metric observations consumed from Kafka",
		},
		[]string{"status"}, // status: processed, rejected, failed
	)

	RateLimitDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulify_ratelimit_drops_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"prefix"},
	)
)
