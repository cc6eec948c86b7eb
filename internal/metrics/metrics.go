// Package metrics exposes scanner metrics to Prometheus and serves a JSON
// health endpoint next to them.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"breakout-scanner/internal/model"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	// Scan runs
	ScansTotal    prometheus.Counter
	ScanDuration  prometheus.Histogram
	ScanSymbols   prometheus.Histogram
	ScansSkipped  *prometheus.CounterVec // labels: reason
	LastScanEpoch prometheus.Gauge

	// Per-symbol outcomes
	VerdictsTotal  *prometheus.CounterVec // labels: outcome=fire|no_fire|error
	ErrorsTotal    *prometheus.CounterVec // labels: kind
	PredicatesTrue *prometheus.CounterVec // labels: predicate
	EvalDuration   prometheus.Histogram

	// Market data
	FetchDuration *prometheus.HistogramVec // labels: provider
	FetchErrors   *prometheus.CounterVec   // labels: provider
	CacheLookups  *prometheus.CounterVec   // labels: result=hit|miss

	// Backpressure
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name
	ArchiveDropsTotal    prometheus.Counter

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Delivery
	AlertsTotal *prometheus.CounterVec // labels: notifier, status
	WSClients   prometheus.Gauge

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=trading day
}

// New creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_scans_total",
			Help: "Completed scan runs",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_scan_duration_seconds",
			Help:    "Wall time of a scan run",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ScanSymbols: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_scan_symbols",
			Help:    "Symbols per scan run",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		ScansSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_scans_skipped_total",
			Help: "Scheduled scans skipped (market closed, scan in progress)",
		}, []string{"reason"}),
		LastScanEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_last_scan_timestamp_seconds",
			Help: "Unix time the last scan finished",
		}),

		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_verdicts_total",
			Help: "Verdicts produced by outcome",
		}, []string{"outcome"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_symbol_errors_total",
			Help: "Symbols that could not be scored, by error kind",
		}, []string{"kind"}),
		PredicatesTrue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_predicates_true_total",
			Help: "Times each breakout predicate held",
		}, []string{"predicate"}),
		EvalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_eval_duration_seconds",
			Help:    "Validate, compute and evaluate latency per symbol",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),

		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scanner_fetch_duration_seconds",
			Help:    "Market data fetch latency per symbol",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_fetch_errors_total",
			Help: "Failed market data fetches",
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_cache_lookups_total",
			Help: "Series cache lookups by result",
		}, []string{"result"}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_fanout_drops_total",
			Help: "Verdicts dropped by the bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scanner_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),
		ArchiveDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_archive_drops_total",
			Help: "Series not archived because the recorder queue was full",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_alerts_total",
			Help: "Alert deliveries by notifier and status",
		}, []string{"notifier", "status"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_ws_clients",
			Help: "Connected WebSocket clients",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_market_state",
			Help: "Exchange calendar state (0=closed, 1=trading day)",
		}),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.ScanDuration,
		m.ScanSymbols,
		m.ScansSkipped,
		m.LastScanEpoch,
		m.VerdictsTotal,
		m.ErrorsTotal,
		m.PredicatesTrue,
		m.EvalDuration,
		m.FetchDuration,
		m.FetchErrors,
		m.CacheLookups,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.ArchiveDropsTotal,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.AlertsTotal,
		m.WSClients,
		m.MarketState,
	)

	return m
}

// ObserveFetch records one market data fetch.
func (m *Metrics) ObserveFetch(provider string, d time.Duration, err error) {
	m.FetchDuration.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(provider).Inc()
	}
}

// ObserveVerdict records the outcome of one symbol.
func (m *Metrics) ObserveVerdict(v model.Verdict, eval time.Duration) {
	switch {
	case v.Error != "":
		m.VerdictsTotal.WithLabelValues("error").Inc()
		m.ErrorsTotal.WithLabelValues(string(v.Error)).Inc()
		return
	case v.Fire:
		m.VerdictsTotal.WithLabelValues("fire").Inc()
	default:
		m.VerdictsTotal.WithLabelValues("no_fire").Inc()
	}
	m.EvalDuration.Observe(eval.Seconds())
	for i, ok := range v.Predicates.Vector() {
		if ok {
			m.PredicatesTrue.WithLabelValues(model.PredicateNames[i]).Inc()
		}
	}
}

// ObserveScan records a finished scan run.
func (m *Metrics) ObserveScan(symbols int, d time.Duration) {
	m.ScansTotal.Inc()
	m.ScanDuration.Observe(d.Seconds())
	m.ScanSymbols.Observe(float64(symbols))
	m.LastScanEpoch.Set(float64(time.Now().Unix()))
}

// ObserveCache records one cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveFanoutDrop records a verdict dropped for a bus subscriber.
func (m *Metrics) ObserveFanoutDrop(subscriber int) {
	m.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriber)).Inc()
}

// ObserveAlert records one alert delivery attempt.
func (m *Metrics) ObserveAlert(notifier string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AlertsTotal.WithLabelValues(notifier, status).Inc()
}
