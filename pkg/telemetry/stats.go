package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// stats bundles the client's self-observation counters. They describe the
// pipeline itself (queued, sent, retried, dropped) and are registered on a
// caller-supplied registerer; without one they stay on a private registry
// so an embedded client never collides with the host's metrics.
type stats struct {
	eventsQueued  *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	batchesSent   *prometheus.CounterVec
	sendAttempts  prometheus.Counter
}

func newStats(reg prometheus.Registerer) *stats {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &stats{
		eventsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_client_events_queued_total",
			Help: "Events accepted into a signal queue.",
		}, []string{"signal"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_client_events_dropped_total",
			Help: "Events dropped before transmission.",
		}, []string{"reason"}),
		batchesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_client_batches_total",
			Help: "Flushed batches by signal and outcome.",
		}, []string{"signal", "outcome"}),
		sendAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_client_send_attempts_total",
			Help: "Individual transport attempts including retries.",
		}),
	}

	reg.MustRegister(s.eventsQueued, s.eventsDropped, s.batchesSent, s.sendAttempts)
	return s
}
