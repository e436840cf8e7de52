package protocol

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts engine activity per protocol.
type Metrics struct {
	Steps         *prometheus.CounterVec
	Cancellations *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	Parked        *prometheus.CounterVec
}

// NewMetrics creates the engine counters and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sastrust",
			Subsystem: "protocol",
			Name:      "steps_total",
			Help:      "Protocol steps executed and committed.",
		}, []string{"protocol", "step"}),
		Cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sastrust",
			Subsystem: "protocol",
			Name:      "cancellations_total",
			Help:      "Protocol instances that ended cancelled.",
		}, []string{"protocol"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sastrust",
			Subsystem: "protocol",
			Name:      "dropped_messages_total",
			Help:      "Received messages discarded without a transition.",
		}, []string{"protocol"}),
		Parked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sastrust",
			Subsystem: "protocol",
			Name:      "parked_messages_total",
			Help:      "Received messages parked until their instance can use them.",
		}, []string{"protocol"}),
	}
	if reg != nil {
		reg.MustRegister(m.Steps, m.Cancellations, m.Dropped, m.Parked)
	}
	return m
}
