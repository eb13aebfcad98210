// Package metrics provides the centralized Prometheus registry for the bot.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	ScanCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boat_better",
		Name:      "scan_cycles_total",
		Help:      "Total number of scan cycles started",
	})
	RacesScannedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boat_better",
		Name:      "races_scanned_total",
		Help:      "Total number of races evaluated end to end",
	})
	RaceScanErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boat_better",
		Name:      "race_scan_errors_total",
		Help:      "Total number of races whose scan failed",
	})
	WagersAdmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boat_better",
		Name:      "wagers_admitted_total",
		Help:      "Total number of wagers admitted into the ledger",
	})
	WagersSettledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boat_better",
		Name:      "wagers_settled_total",
		Help:      "Total number of wagers settled",
	})
	WagerWinsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boat_better",
		Name:      "wager_wins_total",
		Help:      "Total number of winning wagers",
	})
	SettlementConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boat_better",
		Name:      "settlement_conflicts_total",
		Help:      "Total number of settlement integrity conflicts detected",
	})
	ReconcileErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boat_better",
		Name:      "reconcile_errors_total",
		Help:      "Total number of races whose settlement fetch failed",
	})
)

// Gauge metrics
var (
	PendingWagers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "boat_better",
		Name:      "pending_wagers",
		Help:      "Number of wagers currently pending settlement",
	})
	DailyProfit = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "boat_better",
		Name:      "daily_profit",
		Help:      "Profit and loss for the current calendar day",
	})
	OracleCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "boat_better",
		Name:      "oracle_cache_hit_ratio",
		Help:      "Hit ratio of the prediction cache",
	})
)

// Histogram metrics
var (
	ScanCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "boat_better",
		Name:      "scan_cycle_duration_seconds",
		Help:      "Duration of full scan cycles in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300},
	})
	AdmittedExpectedValue = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "boat_better",
		Name:      "admitted_expected_value",
		Help:      "Expected value of admitted wagers",
		Buckets:   []float64{1.0, 1.1, 1.2, 1.5, 2.0, 3.0, 5.0},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(ScanCyclesTotal)
		registry.MustRegister(RacesScannedTotal)
		registry.MustRegister(RaceScanErrorsTotal)
		registry.MustRegister(WagersAdmittedTotal)
		registry.MustRegister(WagersSettledTotal)
		registry.MustRegister(WagerWinsTotal)
		registry.MustRegister(SettlementConflictsTotal)
		registry.MustRegister(ReconcileErrorsTotal)

		// Register gauge metrics
		registry.MustRegister(PendingWagers)
		registry.MustRegister(DailyProfit)
		registry.MustRegister(OracleCacheHitRatio)

		// Register histogram metrics
		registry.MustRegister(ScanCycleDuration)
		registry.MustRegister(AdmittedExpectedValue)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordWagerAdmitted records one admitted wager and its expected value.
func RecordWagerAdmitted(expectedValue float64) {
	WagersAdmittedTotal.Inc()
	AdmittedExpectedValue.Observe(expectedValue)
}

// RecordWagerSettled records one settled wager.
func RecordWagerSettled(win bool) {
	WagersSettledTotal.Inc()
	if win {
		WagerWinsTotal.Inc()
	}
}

// RecordScanCycle records one completed scan cycle.
func RecordScanCycle(durationSeconds float64) {
	ScanCyclesTotal.Inc()
	ScanCycleDuration.Observe(durationSeconds)
}

// UpdatePendingWagers updates the pending wager gauge.
func UpdatePendingWagers(count float64) {
	PendingWagers.Set(count)
}

// UpdateDailyProfit updates the daily P&L gauge.
func UpdateDailyProfit(profit float64) {
	DailyProfit.Set(profit)
}

// UpdateOracleCacheHitRatio updates the prediction cache gauge.
func UpdateOracleCacheHitRatio(ratio float64) {
	OracleCacheHitRatio.Set(ratio)
}
