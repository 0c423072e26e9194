package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	TradesTotal     *prometheus.CounterVec
	ProposalsTotal  *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec
	SkipsTotal      *prometheus.CounterVec
	OpenPositions   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoengine_cycles_total",
			Help: "Engine cycles run, by trigger.",
		}, []string{"trigger"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoengine_cycle_duration_seconds",
			Help:    "Duration of one full engine cycle.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoengine_trades_total",
			Help: "Executed trades, by side.",
		}, []string{"side"}),
		ProposalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoengine_proposals_total",
			Help: "Trade proposals produced, by phase.",
		}, []string{"phase"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoengine_rejections_total",
			Help: "Risk gate rejections, by reason.",
		}, []string{"reason"}),
		SkipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoengine_skips_total",
			Help: "Positions or automations skipped on provider errors, by phase.",
		}, []string{"phase"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autoengine_open_positions",
			Help: "Open positions at the end of the last cycle.",
		}),
	}

	m.registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.TradesTotal,
		m.ProposalsTotal,
		m.RejectionsTotal,
		m.SkipsTotal,
		m.OpenPositions,
	)

	return m
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
