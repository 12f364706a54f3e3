package escrow

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// BasisPoints is the denominator used for all fractional parameters.
const BasisPoints = 10_000

// Outcome identifies which side of an escrow a vote or ruling favours.
type Outcome uint8

const (
	OutcomeUnset Outcome = iota
	// OutcomeRelease pays the escrowed amount to the seller.
	OutcomeRelease
	// OutcomeRefund returns the escrowed amount to the buyer.
	OutcomeRefund
)

// Valid reports whether the outcome is one of the two payable directions.
func (o Outcome) Valid() bool {
	return o == OutcomeRelease || o == OutcomeRefund
}

func (o Outcome) String() string {
	switch o {
	case OutcomeRelease:
		return "release"
	case OutcomeRefund:
		return "refund"
	default:
		return "unset"
	}
}

// Params bundles the tunable escrow constants. All durations are seconds.
type Params struct {
	MinDuration       int64
	MaxDuration       int64
	ArbitratorDelay   int64
	RevealWindow      int64
	DisputeStakeBasis uint32
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MinDuration:       3600,
		MaxDuration:       180 * 86400,
		ArbitratorDelay:   86400,
		RevealWindow:      3600,
		DisputeStakeBasis: 10,
	}
}

// Escrow captures the runtime state of a single custody agreement. Identifiers
// are allocated monotonically by the state backend and never reused.
type Escrow struct {
	ID                   uint64
	Buyer                [20]byte
	Seller               [20]byte
	Arbitrator           [20]byte
	Amount               *big.Int
	DisputeStake         *big.Int
	CreatedAt            int64
	Expiry               int64
	ArbitratorEligibleAt int64
	ReleaseVotes         uint8
	RefundVotes          uint8
	Disputed             bool
	Resolved             bool
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if e.DisputeStake != nil {
		clone.DisputeStake = new(big.Int).Set(e.DisputeStake)
	} else {
		clone.DisputeStake = big.NewInt(0)
	}
	return &clone
}

// IsParticipant reports whether addr is the buyer or the seller.
func (e *Escrow) IsParticipant(addr [20]byte) bool {
	if e == nil {
		return false
	}
	return addr == e.Buyer || addr == e.Seller
}

// DisputeCommitment is the commit half of the commit-reveal dispute protocol.
// One commitment exists per escrow; it is consumed by the matching reveal.
type DisputeCommitment struct {
	EscrowID       uint64
	Commitment     [32]byte
	Committer      [20]byte
	Stake          *big.Int
	RevealDeadline int64
	Revealed       bool
}

// Clone returns a deep copy of the commitment record.
func (c *DisputeCommitment) Clone() *DisputeCommitment {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Stake != nil {
		clone.Stake = new(big.Int).Set(c.Stake)
	} else {
		clone.Stake = big.NewInt(0)
	}
	return &clone
}

// ComputeCommitment derives the commitment hash binding the escrow id, a
// secret nonce and the committer's identity. The reveal step recomputes the
// hash from the supplied nonce and the caller, so only the original committer
// holding the original nonce can satisfy it.
func ComputeCommitment(escrowID uint64, nonce [32]byte, committer [20]byte) [32]byte {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], escrowID)
	digest := ethcrypto.Keccak256(idBuf[:], nonce[:], committer[:])
	var out [32]byte
	copy(out[:], digest)
	return out
}

// SeedSource is the process-wide rotating seed used for arbitrator selection.
// It is injected rather than accessed as a global so tests can run isolated
// instances. The seed rotates by hashing the previous value with the entropy
// of each draw; every input becomes publicly observable once the reveal is
// pending, so this is weak, observable randomness: sufficient to stop a
// committer from predicting the seed before committing, not unpredictable to
// a third party watching the reveal.
type SeedSource struct {
	current [32]byte
}

// NewSeedSource constructs a seed source from an initial value fixed at
// system start.
func NewSeedSource(initial [32]byte) *SeedSource {
	return &SeedSource{current: initial}
}

// Next rotates the seed with the supplied entropy and returns the new value.
func (s *SeedSource) Next(entropy ...[]byte) [32]byte {
	parts := make([][]byte, 0, len(entropy)+1)
	parts = append(parts, s.current[:])
	parts = append(parts, entropy...)
	digest := ethcrypto.Keccak256(parts...)
	copy(s.current[:], digest)
	return s.current
}
