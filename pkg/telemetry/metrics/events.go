package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EventSource reports event fan-out counters. *events.Bus satisfies it.
type EventSource interface {
	Published() uint64
	Dropped() uint64
	Subscribers() int
}

// RegisterEventSource exposes the counters of src. The values are read at
// scrape time.
func (c *Collector) RegisterEventSource(src EventSource) error {
	ns, sub := c.config.Namespace, c.config.Subsystem

	published := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "events_published_total",
			Help:      "Events published on the agent bus",
		},
		func() float64 { return float64(src.Published()) },
	)
	dropped := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber buffer was full",
		},
		func() float64 { return float64(src.Dropped()) },
	)
	subscribers := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "event_subscribers",
			Help:      "Current event bus subscribers",
		},
		func() float64 { return float64(src.Subscribers()) },
	)

	for _, m := range []prometheus.Collector{published, dropped, subscribers} {
		if err := c.registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}
