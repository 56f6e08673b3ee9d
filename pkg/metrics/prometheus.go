// Package metrics exposes the service's Prometheus instrumentation. The
// domain layer records through a narrow interface; this package owns the
// collectors and their registration.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Recorder is the Prometheus-backed implementation of the domain metrics
// interface. Safe for concurrent use.
type Recorder struct {
	upstreamCalls *prometheus.CounterVec
	signals       *prometheus.CounterVec
	errors        *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	cycleDuration *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	utilization   prometheus.Gauge
	breakerOpen   prometheus.Gauge
}

// NewRecorder creates the recorder and registers its collectors with the
// default registry exactly once.
func NewRecorder() *Recorder {
	r := &Recorder{
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpulse_upstream_calls_total",
			Help: "Upstream quote calls by outcome",
		}, []string{"outcome"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpulse_signals_total",
			Help: "Published signals by timeframe and direction",
		}, []string{"timeframe", "direction"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpulse_errors_total",
			Help: "Internal errors by kind",
		}, []string{"kind"}),
		lastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coinpulse_last_price",
			Help: "Last resolved price per symbol",
		}, []string{"symbol"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coinpulse_cycle_duration_seconds",
			Help:    "Signal cycle duration per timeframe",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"timeframe"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpulse_quote_cache_lookups_total",
			Help: "Quote cache lookups by result",
		}, []string{"result"}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_limiter_utilization",
			Help: "Per-minute budget utilization of the rate limiter",
		}),
		breakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_breaker_open",
			Help: "1 while the upstream circuit breaker is open",
		}),
	}

	registerOnce.Do(func() {
		prometheus.MustRegister(
			r.upstreamCalls, r.signals, r.errors, r.lastPrice,
			r.cycleDuration, r.cacheLookups, r.utilization, r.breakerOpen,
		)
	})
	return r
}

func (r *Recorder) RecordUpstreamCall(outcome string) {
	r.upstreamCalls.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordSignal(timeframe, direction string) {
	r.signals.WithLabelValues(timeframe, direction).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordCycleDuration(timeframe string, seconds float64) {
	r.cycleDuration.WithLabelValues(timeframe).Observe(seconds)
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) SetLimiterUtilization(u float64) {
	r.utilization.Set(u)
}

func (r *Recorder) SetBreakerOpen(open bool) {
	v := 0.0
	if open {
		v = 1
	}
	r.breakerOpen.Set(v)
}
