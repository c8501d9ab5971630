package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const namespace = "statusdeck"

// Metrics owns a private registry and the collectors the server updates.
type Metrics struct {
	reg *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	auditFailures prometheus.Counter
}

// New registers the proxy collectors plus the Go runtime and process
// collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Proxied requests by upstream category and response status.",
		}, []string{"category", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Time spent waiting on an upstream, including failures.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"category"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit records dropped because they could not be written.",
		}),
	}
	m.reg.MustRegister(
		m.requests,
		m.latency,
		m.auditFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveProxy counts one completed proxy response.
func (m *Metrics) ObserveProxy(category string, code int) {
	m.requests.WithLabelValues(category, strconv.Itoa(code)).Inc()
}

// ObserveUpstream records how long one upstream call took.
func (m *Metrics) ObserveUpstream(category string, d time.Duration) {
	m.latency.WithLabelValues(category).Observe(d.Seconds())
}

// AuditFailures is incremented by the audit logger on every dropped record.
func (m *Metrics) AuditFailures() prometheus.Counter { return m.auditFailures }

// Gather returns the current metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) { return m.reg.Gather() }

// Handler serves the registry in whichever exposition format the scraper
// negotiates.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		mfs, err := m.Gather()
		if err != nil && len(mfs) == 0 {
			slog.Error("metrics: gather failed", "err", err)
			http.Error(w, "gather failed", http.StatusInternalServerError)
			return
		}

		format := expfmt.Negotiate(r.Header)
		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range mfs {
			if err := enc.Encode(mf); err != nil {
				slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
		if closer, ok := enc.(expfmt.Closer); ok {
			_ = closer.Close()
		}
	})
}
