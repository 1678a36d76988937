// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mirrorarb"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	Scans                 *prometheus.CounterVec
	ScanDuration          prometheus.Histogram
	VenueFetchFailures    *prometheus.CounterVec
	MatchedPairs          prometheus.Gauge
	SelectedOpportunities prometheus.Gauge
	ExpiredOpportunities  *prometheus.CounterVec
	ArchivedOpportunities prometheus.Counter
	Settlements           *prometheus.CounterVec
	SettlementFallbacks   prometheus.Counter
	HTTPRequests          *prometheus.CounterVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Detection runs by outcome (ok, partial, failed, cached).",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a full detection run.",
			Buckets:   prometheus.DefBuckets,
		}),
		VenueFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "venue_fetch_failures_total",
			Help:      "Venue listing fetches that failed and were treated as empty.",
		}, []string{"venue"}),
		MatchedPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matched_pairs",
			Help:      "Pairs above the similarity threshold in the last run.",
		}),
		SelectedOpportunities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_opportunities",
			Help:      "Conflict-free opportunities selected in the last run.",
		}),
		ExpiredOpportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_opportunities_total",
			Help:      "Opportunities moved to expired, by reason (superseded, stale).",
		}, []string{"reason"}),
		ArchivedOpportunities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_opportunities_total",
			Help:      "Expired opportunities written to cold storage.",
		}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement attempts by outcome.",
		}, []string{"outcome"}),
		SettlementFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_fallbacks_total",
			Help:      "Receipt waits retried on the fallback RPC.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Scans,
		m.ScanDuration,
		m.VenueFetchFailures,
		m.MatchedPairs,
		m.SelectedOpportunities,
		m.ExpiredOpportunities,
		m.ArchivedOpportunities,
		m.Settlements,
		m.SettlementFallbacks,
		m.HTTPRequests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
