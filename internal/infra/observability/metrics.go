package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the storefront API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	ordersPlaced    *prometheus.CounterVec
	fidelityEvents  *prometheus.CounterVec
}

// OrderStats is a snapshot of order counters for the admin metrics endpoint.
type OrderStats struct {
	OrdersPlaced    int64   `json:"orders_placed"`
	GuestOrders     int64   `json:"guest_orders"`
	RewardsEarned   int64   `json:"rewards_earned"`
	RewardsConsumed int64   `json:"rewards_consumed"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		ordersPlaced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_orders_placed_total",
				Help: "Total orders placed, by customer kind.",
			},
			[]string{"kind"},
		),
		fidelityEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_fidelity_events_total",
				Help: "Fidelity transitions (accrue, earn, consume).",
			},
			[]string{"event"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrOrderPlaced increments the order counter. Kind is "customer" or "guest".
func (m *Metrics) IncrOrderPlaced(kind string) {
	m.ordersPlaced.WithLabelValues(kind).Inc()
}

// IncrFidelityEvent increments a fidelity transition counter.
func (m *Metrics) IncrFidelityEvent(event string) {
	m.fidelityEvents.WithLabelValues(event).Inc()
}

// GetOrderStats returns a snapshot of order-related counters for the
// GET /v1/metrics/orders endpoint.
func (m *Metrics) GetOrderStats() *OrderStats {
	placed := getCounterValue(m.ordersPlaced, "customer") + getCounterValue(m.ordersPlaced, "guest")
	hits := getCounterValue(m.cacheHits, "catalog")
	misses := getCounterValue(m.cacheMisses, "catalog")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &OrderStats{
		OrdersPlaced:    int64(placed),
		GuestOrders:     int64(getCounterValue(m.ordersPlaced, "guest")),
		RewardsEarned:   int64(getCounterValue(m.fidelityEvents, "earn")),
		RewardsConsumed: int64(getCounterValue(m.fidelityEvents, "consume")),
		CacheHitRate:    hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
