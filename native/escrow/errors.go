package escrow

import (
	"errors"

	nativecommon "custodia/native/common"
)

// Classified sentinels surfaced to callers. Callers branch on identity with
// errors.Is or on class with nativecommon.KindOf.
var (
	ErrInvalidAddress    = nativecommon.NewError(nativecommon.KindValidation, "escrow: invalid address")
	ErrInvalidAmount     = nativecommon.NewError(nativecommon.KindValidation, "escrow: invalid amount")
	ErrInvalidDuration   = nativecommon.NewError(nativecommon.KindValidation, "escrow: duration out of range")
	ErrInvalidOutcome    = nativecommon.NewError(nativecommon.KindValidation, "escrow: invalid outcome")
	ErrInvalidCommitment = nativecommon.NewError(nativecommon.KindValidation, "escrow: commitment mismatch")

	ErrEscrowNotFound     = nativecommon.NewError(nativecommon.KindState, "escrow: escrow not found")
	ErrAlreadyResolved    = nativecommon.NewError(nativecommon.KindState, "escrow: already resolved")
	ErrAlreadyDisputed    = nativecommon.NewError(nativecommon.KindState, "escrow: already disputed")
	ErrNotDisputed        = nativecommon.NewError(nativecommon.KindState, "escrow: not disputed")
	ErrCommitmentNotFound = nativecommon.NewError(nativecommon.KindState, "escrow: no dispute commitment")
	ErrAlreadyRevealed    = nativecommon.NewError(nativecommon.KindState, "escrow: commitment already revealed")

	ErrDisputeTooEarly      = nativecommon.NewError(nativecommon.KindTiming, "escrow: dispute window not open")
	ErrRevealDeadlinePassed = nativecommon.NewError(nativecommon.KindTiming, "escrow: reveal deadline passed")
	ErrExpiryNotReached     = nativecommon.NewError(nativecommon.KindTiming, "escrow: expiry not reached")

	ErrNotParticipant = nativecommon.NewError(nativecommon.KindAuthorization, "escrow: caller is not a participant")

	ErrInsufficientStake = nativecommon.NewError(nativecommon.KindEconomic, "escrow: insufficient dispute stake")
)

// Internal wiring faults, never part of the caller contract.
var (
	errNilState    = errors.New("escrow engine: state not configured")
	errNilLedger   = errors.New("escrow engine: ledger not configured")
	errNilAssigner = errors.New("escrow engine: arbitrator assigner not configured")
	errNilSeeds    = errors.New("escrow engine: seed source not configured")
)
