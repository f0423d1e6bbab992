package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"IchimokuScanner/internal/model"
	"IchimokuScanner/internal/scanner"
)

// Metrics holds the Prometheus collectors for scans.
type Metrics struct {
	Registry *prometheus.Registry

	ScansTotal        *prometheus.CounterVec // labels: timeframe, trigger
	SymbolsTotal      *prometheus.CounterVec // labels: outcome
	ScanDuration      prometheus.Histogram
	LastMatches       prometheus.Gauge
	LastScanTimestamp prometheus.Gauge
	ScanInProgress    prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichimoku_scans_total",
			Help: "Completed scans by timeframe and trigger (api, cron, cli, telegram)",
		}, []string{"timeframe", "trigger"}),
		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichimoku_symbols_total",
			Help: "Scanned symbols by outcome",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ichimoku_scan_duration_seconds",
			Help:    "Wall time of a full universe scan",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ichimoku_last_scan_matches",
			Help: "Matches found by the most recent scan",
		}),
		LastScanTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ichimoku_last_scan_timestamp_seconds",
			Help: "Unix time of the most recent scan",
		}),
		ScanInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ichimoku_scan_in_progress",
			Help: "1 while a scan is running",
		}),
	}
	m.Registry.MustRegister(
		m.ScansTotal,
		m.SymbolsTotal,
		m.ScanDuration,
		m.LastMatches,
		m.LastScanTimestamp,
		m.ScanInProgress,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOutcome counts one symbol's result. Safe for concurrent use.
func (m *Metrics) ObserveOutcome(o scanner.Outcome) {
	outcome := "no_match"
	switch {
	case o.Err != nil:
		outcome = "error"
	case o.Skipped != "":
		outcome = "skipped"
	case o.Match != nil:
		outcome = "match"
	}
	m.SymbolsTotal.WithLabelValues(outcome).Inc()
}

// ObserveReport records a finished scan.
func (m *Metrics) ObserveReport(r *model.ScanReport, trigger string, elapsed time.Duration) {
	m.ScansTotal.WithLabelValues(r.Timeframe, trigger).Inc()
	m.ScanDuration.Observe(elapsed.Seconds())
	m.LastMatches.Set(float64(r.MatchesFound))
	m.LastScanTimestamp.Set(float64(r.ScanTime.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
