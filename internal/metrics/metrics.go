// Package metrics exposes cycle outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

const namespace = "gridbot"

// Collector is a report sink that records every cycle into its own registry.
type Collector struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  *prometheus.HistogramVec
	operations     *prometheus.CounterVec
	guardActions   *prometheus.CounterVec
	levels         *prometheus.GaugeVec
	referencePrice *prometheus.GaugeVec
	trend          *prometheus.GaugeVec
	spread         *prometheus.GaugeVec
}

// New creates a Collector with Go runtime and process collectors registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by result (ok, failed).",
		}, []string{"instrument", "result"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reconciliation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"instrument"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Venue operations issued by the executor.",
		}, []string{"instrument", "kind", "reason"}),
		guardActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_guard_total",
			Help:      "Position guard outcomes.",
		}, []string{"instrument", "action"}),
		levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_levels",
			Help:      "Grid levels per side in the last cycle (target or observed).",
		}, []string{"instrument", "side", "source"}),
		referencePrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_price",
			Help:      "Reference price used by the last cycle.",
		}, []string{"instrument"}),
		trend: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trend_strength",
			Help:      "Last trend-strength reading (absent when unavailable).",
		}, []string{"instrument"}),
		spread: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spread",
			Help:      "Spread applied around the reference price in the last cycle.",
		}, []string{"instrument"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.cycles, c.cycleDuration, c.operations, c.guardActions,
		c.levels, c.referencePrice, c.trend, c.spread,
	)
	return c
}

// Name identifies the sink in logs.
func (c *Collector) Name() string { return "metrics" }

// Observe records report.
func (c *Collector) Observe(_ context.Context, report domain.CycleReport) error {
	inst := report.Instrument

	result := "ok"
	if report.Failed() {
		result = "failed"
	}
	c.cycles.WithLabelValues(inst, result).Inc()
	c.cycleDuration.WithLabelValues(inst).Observe(report.Duration.Seconds())

	for _, res := range report.Execution.Results {
		c.operations.WithLabelValues(inst, string(res.Kind), string(res.Reason)).Inc()
	}
	if report.Guard.Action != "" {
		c.guardActions.WithLabelValues(inst, string(report.Guard.Action)).Inc()
	}

	if report.Failed() {
		return nil
	}
	c.levels.WithLabelValues(inst, string(domain.SideBuy), "target").Set(float64(len(report.Target.Buy)))
	c.levels.WithLabelValues(inst, string(domain.SideSell), "target").Set(float64(len(report.Target.Sell)))
	c.levels.WithLabelValues(inst, string(domain.SideBuy), "observed").Set(float64(len(report.Observed.Buy)))
	c.levels.WithLabelValues(inst, string(domain.SideSell), "observed").Set(float64(len(report.Observed.Sell)))
	c.referencePrice.WithLabelValues(inst).Set(report.ReferencePrice)
	c.spread.WithLabelValues(inst).Set(float64(report.Spread))
	if report.Trend != nil {
		c.trend.WithLabelValues(inst).Set(*report.Trend)
	} else {
		c.trend.DeleteLabelValues(inst)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
