package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"custodia/core/types"
)

const (
	EventTypeEscrowCreated    = "escrow.created"
	EventTypeDisputeCommitted = "escrow.dispute.committed"
	EventTypeEscrowDisputed   = "escrow.disputed"
	EventTypeEscrowResolved   = "escrow.resolved"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: EventTypeEscrowCreated, Attributes: attrs}
	}
	clone := e.Clone()
	attrs["id"] = strconv.FormatUint(clone.ID, 10)
	attrs["buyer"] = hex.EncodeToString(clone.Buyer[:])
	attrs["seller"] = hex.EncodeToString(clone.Seller[:])
	attrs["amount"] = clone.Amount.String()
	attrs["expiry"] = strconv.FormatInt(clone.Expiry, 10)
	attrs["createdAt"] = strconv.FormatInt(clone.CreatedAt, 10)
	return &types.Event{Type: EventTypeEscrowCreated, Attributes: attrs}
}

// NewDisputeCommittedEvent returns the event payload emitted when a party
// commits to raising a dispute.
func NewDisputeCommittedEvent(c *DisputeCommitment) *types.Event {
	attrs := make(map[string]string)
	if c == nil {
		return &types.Event{Type: EventTypeDisputeCommitted, Attributes: attrs}
	}
	clone := c.Clone()
	attrs["id"] = strconv.FormatUint(clone.EscrowID, 10)
	attrs["committer"] = hex.EncodeToString(clone.Committer[:])
	attrs["stake"] = clone.Stake.String()
	attrs["revealDeadline"] = strconv.FormatInt(clone.RevealDeadline, 10)
	return &types.Event{Type: EventTypeDisputeCommitted, Attributes: attrs}
}

// NewDisputedEvent returns the event payload emitted when a revealed
// commitment converts the escrow into a dispute.
func NewDisputedEvent(e *Escrow, disputer [20]byte) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: EventTypeEscrowDisputed, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(e.ID, 10)
	attrs["disputer"] = hex.EncodeToString(disputer[:])
	attrs["arbitrator"] = hex.EncodeToString(e.Arbitrator[:])
	return &types.Event{Type: EventTypeEscrowDisputed, Attributes: attrs}
}

// NewResolvedEvent returns the event payload emitted when the escrow pays out.
// The amount is passed explicitly because the stored escrow is zeroed in the
// same transition.
func NewResolvedEvent(e *Escrow, winner [20]byte, amount *big.Int) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: EventTypeEscrowResolved, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(e.ID, 10)
	attrs["winner"] = hex.EncodeToString(winner[:])
	if amount != nil {
		attrs["amount"] = amount.String()
	} else {
		attrs["amount"] = "0"
	}
	return &types.Event{Type: EventTypeEscrowResolved, Attributes: attrs}
}
