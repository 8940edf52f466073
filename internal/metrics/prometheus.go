package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

var _ domain.TransferObserver = (*Collector)(nil)

// Collector exposes ledger metrics on its own registry.
type Collector struct {
	registry         *prometheus.Registry
	transfersTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	stalePending     prometheus.Gauge
	httpRequests     *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry: registry,
		transfersTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Total number of transfer attempts by outcome",
		}, []string{"outcome"}),
		transferDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_transfer_duration_seconds",
			Help:    "Time taken to process a transfer",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		stalePending: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "ledger_stale_pending_transfers",
			Help: "Transfer records left pending longer than the stale threshold at the last sweep",
		}),
		httpRequests: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveTransfer records one transfer attempt.
func (c *Collector) ObserveTransfer(outcome string, elapsed time.Duration) {
	c.transfersTotal.WithLabelValues(outcome).Inc()
	c.transferDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SetStalePending records the number of stale pending records found by the last sweep.
func (c *Collector) SetStalePending(count int) {
	c.stalePending.Set(float64(count))
}

// ObserveHTTPRequest counts a served request.
func (c *Collector) ObserveHTTPRequest(route, code string) {
	c.httpRequests.WithLabelValues(route, code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
