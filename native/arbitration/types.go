package arbitration

import (
	"custodia/native/escrow"
)

// Reputation and rating scales. Ratings arrive on a 1-5 scale and are mapped
// onto the 0-100 reputation domain before the moving-average update, so the
// update can never push reputation outside its bounds.
const (
	ReputationMax uint32 = 100
	RatingMin     uint8  = 1
	RatingMax     uint8  = 5
)

// SelectionStrategy names how a dispute's arbitrator candidate is picked.
type SelectionStrategy string

const (
	// SelectionWeighted scores active arbitrators by reputation, success
	// rate and participation. Primary strategy.
	SelectionWeighted SelectionStrategy = "weighted"
	// SelectionHash maps the reveal seed onto the sorted active set. Kept
	// as an explicit fallback behind configuration, not an automatic one.
	SelectionHash SelectionStrategy = "hash"
)

// Valid reports whether the strategy is supported.
func (s SelectionStrategy) Valid() bool {
	return s == SelectionWeighted || s == SelectionHash
}

// Params bundles the tunable arbitration constants.
type Params struct {
	MinReputation     uint32
	MinParticipation  uint32
	MaxOpenDisputes   uint32
	RatingWeight      uint32
	DisputeTimeout    int64
	SelectionStrategy SelectionStrategy
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MinReputation:     50,
		MinParticipation:  1,
		MaxOpenDisputes:   5,
		RatingWeight:      20,
		DisputeTimeout:    7 * 86400,
		SelectionStrategy: SelectionWeighted,
	}
}

// MetadataSource supplies the externally maintained reputation and
// participation readings consumed at registration time.
type MetadataSource interface {
	Reputation(addr [20]byte) (uint32, error)
	Participation(addr [20]byte) (uint32, error)
}

// Arbitrator is one registered candidate and its selection inputs.
type Arbitrator struct {
	Address             [20]byte
	Reputation          uint32
	ParticipationIndex  uint32
	TotalCases          uint64
	SuccessfulCases     uint64
	OpenCases           uint32
	IsActive            bool
	RegisteredAt        int64
	LastActiveTimestamp int64
}

// Clone returns a copy of the arbitrator record.
func (a *Arbitrator) Clone() *Arbitrator {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// SuccessRateBps returns the arbitrator's historical success rate in basis
// points, zero while no case has ever been opened.
func (a *Arbitrator) SuccessRateBps() uint64 {
	if a == nil || a.TotalCases == 0 {
		return 0
	}
	return a.SuccessfulCases * uint64(escrow.BasisPoints) / a.TotalCases
}

// Dispute is the per-escrow arbitration record created at assignment.
type Dispute struct {
	EscrowID         uint64
	Arbitrator       [20]byte
	CreatedAt        int64
	Resolved         bool
	ResolutionNote   string
	BuyerRating      uint8
	SellerRating     uint8
	ArbitratorRating uint8
	Votes            map[[20]byte]escrow.Outcome
}

// Clone returns a deep copy of the dispute record.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Votes = make(map[[20]byte]escrow.Outcome, len(d.Votes))
	for voter, choice := range d.Votes {
		clone.Votes[voter] = choice
	}
	return &clone
}
