package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/warden/pkg/config"
)

// Collector records agent metrics into its registry.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	appliesTotal   *prometheus.CounterVec
	applyDuration  *prometheus.HistogramVec
	removalsTotal  *prometheus.CounterVec
	removeFailures prometheus.Counter
	kernelMessages *prometheus.CounterVec
	kernelUp       prometheus.Gauge
	activePolicies *prometheus.GaugeVec
	expansions     *prometheus.CounterVec
	expandDuration prometheus.Histogram
	expandChildren prometheus.Histogram
}

// NewCollector creates a collector. A nil registry gets a fresh one with the
// Go and process collectors registered.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	ns, sub := cfg.Namespace, cfg.Subsystem
	c := &Collector{
		config:   cfg,
		registry: registry,

		appliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "policy_applies_total",
				Help:      "Total number of protection apply attempts",
			},
			[]string{"action", "mode", "result"},
		),
		applyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "policy_apply_duration_seconds",
				Help:      "Duration of protection applies in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
			},
			[]string{"action"},
		),
		removalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "policy_removals_total",
				Help:      "Total number of protection removals",
			},
			[]string{"result"},
		),
		removeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "kernel_removal_failures_total",
				Help:      "Kernel rules that could not be withdrawn while their policy was removed",
			},
		),
		kernelMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "kernel_messages_total",
				Help:      "Messages sent to the kernel port",
			},
			[]string{"operation", "result"},
		),
		kernelUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "kernel_connected",
				Help:      "Whether the kernel port is attached (1) or not (0)",
			},
		),
		activePolicies: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "active_policies",
				Help:      "Active policies by enforcement mode",
			},
			[]string{"mode"},
		),
		expansions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "index_expansions_total",
				Help:      "Filesystem index expansions",
			},
			[]string{"result"},
		),
		expandDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "index_expand_duration_seconds",
				Help:      "Duration of directory enumeration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
		expandChildren: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "index_expanded_children",
				Help:      "Children materialized per expansion",
				Buckets:   []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),
	}

	registry.MustRegister(
		c.appliesTotal,
		c.applyDuration,
		c.removalsTotal,
		c.removeFailures,
		c.kernelMessages,
		c.kernelUp,
		c.activePolicies,
		c.expansions,
		c.expandDuration,
		c.expandChildren,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Enabled reports whether recording is on.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordApply records one apply attempt.
func (c *Collector) RecordApply(action, mode, result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if mode == "" {
		mode = "none"
	}
	c.appliesTotal.WithLabelValues(action, mode, result).Inc()
	c.applyDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordRemove records one removal and the kernel withdrawals that failed
// during it.
func (c *Collector) RecordRemove(result string, kernelFailures int) {
	if !c.config.Enabled {
		return
	}
	c.removalsTotal.WithLabelValues(result).Inc()
	if kernelFailures > 0 {
		c.removeFailures.Add(float64(kernelFailures))
	}
}

// RecordKernelSend records one message to the kernel port. Operation is
// "send" or "remove".
func (c *Collector) RecordKernelSend(operation, result string) {
	if !c.config.Enabled {
		return
	}
	c.kernelMessages.WithLabelValues(operation, result).Inc()
}

// RecordExpand records one index expansion.
func (c *Collector) RecordExpand(result string, children int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.expansions.WithLabelValues(result).Inc()
	c.expandDuration.Observe(duration.Seconds())
	if result == "ok" {
		c.expandChildren.Observe(float64(children))
	}
}

// SetActivePolicies sets the active policy gauges.
func (c *Collector) SetActivePolicies(real, simulated int) {
	if !c.config.Enabled {
		return
	}
	c.activePolicies.WithLabelValues("real").Set(float64(real))
	c.activePolicies.WithLabelValues("simulated").Set(float64(simulated))
}

// SetKernelConnected sets the kernel connectivity gauge.
func (c *Collector) SetKernelConnected(connected bool) {
	if !c.config.Enabled {
		return
	}
	if connected {
		c.kernelUp.Set(1)
	} else {
		c.kernelUp.Set(0)
	}
}
