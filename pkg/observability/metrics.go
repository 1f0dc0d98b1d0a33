// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the httpd exchange pipeline.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ExchangeBuckets defines histogram buckets for exchange durations, from
// 1ms to 60s. Deferred exchanges (timers, file streams) sit at the top end.
var ExchangeBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60}

// Completion labels.
const (
	CompletionInline   = "inline"
	CompletionDeferred = "deferred"
	CompletionShort    = "short_circuit"
)

// Writer end modes.
const (
	EndGraceful = "graceful"
	EndAbrupt   = "abrupt"
)

var (
	// ExchangesTotal counts finished exchanges by method, status class, and completion mode.
	ExchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpd_exchanges_total",
			Help: "Finished exchanges",
		},
		[]string{"method", "status", "completion"},
	)

	// ExchangeDuration records the time from dispatch to writer end.
	ExchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpd_exchange_duration_seconds",
			Help:    "Exchange duration",
			Buckets: ExchangeBuckets,
		},
		[]string{"completion"},
	)

	// PendingExchanges tracks deferred exchanges whose writer has not ended.
	PendingExchanges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpd_pending_exchanges",
			Help: "Deferred exchanges awaiting completion",
		},
	)

	// WriterEndsTotal counts writer terminations by mode (graceful or abrupt).
	WriterEndsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpd_writer_ends_total",
			Help: "Writer terminations",
		},
		[]string{"mode"},
	)

	// BodyBytesTotal counts body bytes accepted by the transport.
	BodyBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpd_body_bytes_total",
			Help: "Body bytes written",
		},
	)

	// TimersFiredTotal counts one-shot and interval timer callbacks.
	TimersFiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpd_timers_fired_total",
			Help: "Timer callbacks fired",
		},
	)

	// BackgroundTasksActive tracks running background tasks.
	BackgroundTasksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpd_background_tasks_active",
			Help: "Running background tasks",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpd_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)

	// UploadsPrunedTotal counts uploads removed by the retention scheduler.
	UploadsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpd_uploads_pruned_total",
			Help: "Uploads removed by retention",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ExchangesTotal,
		ExchangeDuration,
		PendingExchanges,
		WriterEndsTotal,
		BodyBytesTotal,
		TimersFiredTotal,
		BackgroundTasksActive,
		RateLimitRejectedTotal,
		UploadsPrunedTotal,
	)
}

// StatusClass renders a status code as "2xx", "4xx", and so on.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return string(rune('0'+status/100)) + "xx"
}
