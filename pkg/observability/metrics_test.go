package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	expected := map[string]bool{
		"httpd_exchanges_total":           false,
		"httpd_exchange_duration_seconds": false,
		"httpd_pending_exchanges":         false,
		"httpd_writer_ends_total":         false,
		"httpd_body_bytes_total":          false,
		"httpd_timers_fired_total":        false,
		"httpd_background_tasks_active":   false,
		"httpd_ratelimit_rejected_total":  false,
		"httpd_uploads_pruned_total":      false,
	}

	// Vectors only appear after their first observation.
	RecordExchange("GET", 200, CompletionInline, time.Millisecond)
	WriterEndsTotal.WithLabelValues(EndGraceful).Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestRecordExchange(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		status     int
		completion string
		class      string
	}{
		{"inline ok", "GET", 200, CompletionInline, "2xx"},
		{"deferred ok", "GET", 200, CompletionDeferred, "2xx"},
		{"client error", "POST", 400, CompletionInline, "4xx"},
		{"preflight", "OPTIONS", 204, CompletionShort, "2xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := counterValue(t, ExchangesTotal, tt.method, tt.class, tt.completion)
			hBefore := histogramCount(t, ExchangeDuration, tt.completion)

			RecordExchange(tt.method, tt.status, tt.completion, 5*time.Millisecond)

			if delta := counterValue(t, ExchangesTotal, tt.method, tt.class, tt.completion) - before; delta != 1 {
				t.Errorf("exchanges delta = %f, want 1", delta)
			}
			if delta := histogramCount(t, ExchangeDuration, tt.completion) - hBefore; delta != 1 {
				t.Errorf("duration samples delta = %d, want 1", delta)
			}
		})
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{204, "2xx"},
		{304, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "other"},
		{10003, "other"},
	}
	for _, tt := range tests {
		if got := StatusClass(tt.status); got != tt.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	TimersFiredTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "httpd_timers_fired_total") {
		t.Error("metrics output does not contain httpd_timers_fired_total")
	}
}

func TestBackgroundGauge(t *testing.T) {
	baseline := gaugeValue(t, BackgroundTasksActive)
	BackgroundTasksActive.Inc()
	if got := gaugeValue(t, BackgroundTasksActive); got != baseline+1 {
		t.Errorf("gauge = %f, want %f", got, baseline+1)
	}
	BackgroundTasksActive.Dec()
	if got := gaugeValue(t, BackgroundTasksActive); got != baseline {
		t.Errorf("gauge = %f, want %f", got, baseline)
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
