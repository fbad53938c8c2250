package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meal-planner-sync/internal/listsync"
)

// Collector exposes sync activity as Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	manualFound    prometheus.Counter
	reinserted     prometheus.Counter
	reinsertFailed prometheus.Counter
	notifications  prometheus.Counter
	lastRun        prometheus.Gauge
}

// NewCollector creates a collector registered on its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "mealsync"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Processed plan change events by action and status",
		},
		[]string{"action", "status"},
	)

	c.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Time taken to reconcile the shopping list",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"action"},
	)

	c.manualFound = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "manual_items_found_total",
		Help:      "Manual items detected before regeneration",
	})

	c.reinserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "manual_items_reinserted_total",
		Help:      "Manual items re-added after regeneration",
	})

	c.reinsertFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "manual_items_reinsert_failed_total",
		Help:      "Manual items that could not be re-added",
	})

	c.notifications = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "notifications_total",
		Help:      "Shopping list update notifications emitted",
	})

	c.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last sync run started",
	})

	c.registry.MustRegister(
		c.runs,
		c.runDuration,
		c.manualFound,
		c.reinserted,
		c.reinsertFailed,
		c.notifications,
		c.lastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Observe implements listsync.Observer.
func (c *Collector) Observe(o listsync.Outcome) {
	c.runs.WithLabelValues(o.Action.String(), string(o.Status)).Inc()
	c.runDuration.WithLabelValues(o.Action.String()).Observe(o.Duration.Seconds())
	c.manualFound.Add(float64(o.ManualFound))
	c.reinserted.Add(float64(o.Reinserted))
	c.reinsertFailed.Add(float64(o.ReinsertFailed))
	if o.Notified {
		c.notifications.Inc()
	}
	if !o.StartedAt.IsZero() {
		c.lastRun.Set(float64(o.StartedAt.Unix()))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
