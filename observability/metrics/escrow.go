package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"custodia/core/events"
	"custodia/native/arbitration"
	"custodia/native/escrow"
)

// EscrowMetrics aggregates the counters exposed for the escrow core.
type EscrowMetrics struct {
	escrowsCreated   prometheus.Counter
	escrowsResolved  prometheus.Counter
	disputesOpened   prometheus.Counter
	disputesResolved prometheus.Counter
	votesCast        prometheus.Counter
	ratingsSubmitted prometheus.Counter
	registrations    prometheus.Counter
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the process-wide escrow metrics set.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			escrowsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_created_total",
				Help: "Count of escrows opened.",
			}),
			escrowsResolved: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_resolved_total",
				Help: "Count of escrows paid out.",
			}),
			disputesOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_disputes_opened_total",
				Help: "Count of revealed disputes with an assigned arbitrator.",
			}),
			disputesResolved: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_disputes_resolved_total",
				Help: "Count of disputes settled by vote or ruling.",
			}),
			votesCast: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_votes_cast_total",
				Help: "Count of accepted dispute votes.",
			}),
			ratingsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "escrow_ratings_submitted_total",
				Help: "Count of post-resolution arbitrator ratings.",
			}),
			registrations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "arbitrators_registered_total",
				Help: "Count of arbitrator registrations.",
			}),
		}
	})
	return escrowRegistry
}

// Register attaches the collectors to reg.
func (m *EscrowMetrics) Register(reg prometheus.Registerer) {
	if m == nil || reg == nil {
		return
	}
	reg.MustRegister(
		m.escrowsCreated,
		m.escrowsResolved,
		m.disputesOpened,
		m.disputesResolved,
		m.votesCast,
		m.ratingsSubmitted,
		m.registrations,
	)
}

// Observe bumps the counter matching the event type.
func (m *EscrowMetrics) Observe(eventType string) {
	if m == nil {
		return
	}
	switch eventType {
	case escrow.EventTypeEscrowCreated:
		m.escrowsCreated.Inc()
	case escrow.EventTypeEscrowResolved:
		m.escrowsResolved.Inc()
	case escrow.EventTypeEscrowDisputed:
		m.disputesOpened.Inc()
	case arbitration.EventTypeDisputeResolved:
		m.disputesResolved.Inc()
	case arbitration.EventTypeVoteCast:
		m.votesCast.Inc()
	case arbitration.EventTypeRatingSubmitted:
		m.ratingsSubmitted.Inc()
	case arbitration.EventTypeArbitratorRegistered:
		m.registrations.Inc()
	}
}

// Recorder is an events.Emitter that counts emissions before forwarding them
// to the next emitter in the chain.
type Recorder struct {
	metrics *EscrowMetrics
	next    events.Emitter
}

// NewRecorder wraps next with metric counting. A nil next discards events
// after counting.
func NewRecorder(metrics *EscrowMetrics, next events.Emitter) *Recorder {
	return &Recorder{metrics: metrics, next: next}
}

// Emit implements events.Emitter.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	r.metrics.Observe(evt.EventType())
	if r.next != nil {
		r.next.Emit(evt)
	}
}
