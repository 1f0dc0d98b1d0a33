package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RecordExchange records one finished exchange.
func RecordExchange(method string, status int, completion string, d time.Duration) {
	ExchangesTotal.WithLabelValues(method, StatusClass(status), completion).Inc()
	ExchangeDuration.WithLabelValues(completion).Observe(d.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
