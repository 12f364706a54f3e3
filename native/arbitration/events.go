package arbitration

import (
	"encoding/hex"
	"strconv"

	"custodia/core/types"
	"custodia/native/escrow"
)

const (
	EventTypeArbitratorRegistered  = "arbitration.registered"
	EventTypeArbitratorDeactivated = "arbitration.deactivated"
	EventTypeReputationUpdated     = "arbitration.reputation.updated"
	EventTypeDisputeCreated        = "arbitration.dispute.created"
	EventTypeDisputeResolved       = "arbitration.dispute.resolved"
	EventTypeVoteCast              = "arbitration.vote"
	EventTypeRatingSubmitted       = "arbitration.rating"
)

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// NewRegisteredEvent returns the payload emitted when an arbitrator joins the
// selectable set.
func NewRegisteredEvent(a *Arbitrator) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["arbitrator"] = hex.EncodeToString(a.Address[:])
		attrs["reputation"] = strconv.FormatUint(uint64(a.Reputation), 10)
		attrs["participation"] = strconv.FormatUint(uint64(a.ParticipationIndex), 10)
	}
	return &types.Event{Type: EventTypeArbitratorRegistered, Attributes: attrs}
}

// NewDeactivatedEvent returns the payload emitted when an arbitrator is
// removed from the selectable set.
func NewDeactivatedEvent(a *Arbitrator) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["arbitrator"] = hex.EncodeToString(a.Address[:])
	}
	return &types.Event{Type: EventTypeArbitratorDeactivated, Attributes: attrs}
}

// NewReputationUpdatedEvent returns the payload emitted by a rating-driven
// reputation change.
func NewReputationUpdatedEvent(a *Arbitrator, rating uint8) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["arbitrator"] = hex.EncodeToString(a.Address[:])
		attrs["reputation"] = strconv.FormatUint(uint64(a.Reputation), 10)
		attrs["rating"] = strconv.FormatUint(uint64(rating), 10)
	}
	return &types.Event{Type: EventTypeReputationUpdated, Attributes: attrs}
}

// NewDisputeCreatedEvent returns the payload emitted when a dispute record is
// opened and an arbitrator assigned.
func NewDisputeCreatedEvent(d *Dispute) *types.Event {
	attrs := make(map[string]string)
	if d != nil {
		attrs["id"] = strconv.FormatUint(d.EscrowID, 10)
		attrs["arbitrator"] = hex.EncodeToString(d.Arbitrator[:])
		attrs["createdAt"] = strconv.FormatInt(d.CreatedAt, 10)
	}
	return &types.Event{Type: EventTypeDisputeCreated, Attributes: attrs}
}

// NewDisputeResolvedEvent returns the payload emitted when a dispute settles.
func NewDisputeResolvedEvent(d *Dispute, outcome escrow.Outcome) *types.Event {
	attrs := make(map[string]string)
	if d != nil {
		attrs["id"] = strconv.FormatUint(d.EscrowID, 10)
		attrs["arbitrator"] = hex.EncodeToString(d.Arbitrator[:])
		attrs["outcome"] = outcome.String()
		if d.ResolutionNote != "" {
			attrs["note"] = d.ResolutionNote
		}
	}
	return &types.Event{Type: EventTypeDisputeResolved, Attributes: attrs}
}

// NewVoteEvent returns the payload emitted for each accepted vote.
func NewVoteEvent(d *Dispute, voter [20]byte, choice escrow.Outcome) *types.Event {
	attrs := make(map[string]string)
	if d != nil {
		attrs["id"] = strconv.FormatUint(d.EscrowID, 10)
		attrs["voter"] = hex.EncodeToString(voter[:])
		attrs["choice"] = choice.String()
	}
	return &types.Event{Type: EventTypeVoteCast, Attributes: attrs}
}

// NewRatingEvent returns the payload emitted when a party rates the assigned
// arbitrator.
func NewRatingEvent(d *Dispute, rater [20]byte, rating uint8) *types.Event {
	attrs := make(map[string]string)
	if d != nil {
		attrs["id"] = strconv.FormatUint(d.EscrowID, 10)
		attrs["rater"] = hex.EncodeToString(rater[:])
		attrs["rating"] = strconv.FormatUint(uint64(rating), 10)
	}
	return &types.Event{Type: EventTypeRatingSubmitted, Attributes: attrs}
}
