package arbitration

import (
	"errors"

	nativecommon "custodia/native/common"
)

var (
	ErrInvalidAddress      = nativecommon.NewError(nativecommon.KindValidation, "arbitration: invalid address")
	ErrInvalidVote         = nativecommon.NewError(nativecommon.KindValidation, "arbitration: invalid vote choice")
	ErrInvalidRating       = nativecommon.NewError(nativecommon.KindValidation, "arbitration: rating out of range")
	ErrReputationTooLow    = nativecommon.NewError(nativecommon.KindValidation, "arbitration: reputation below registry minimum")
	ErrParticipationTooLow = nativecommon.NewError(nativecommon.KindValidation, "arbitration: participation below registry minimum")

	ErrAlreadyRegistered  = nativecommon.NewError(nativecommon.KindState, "arbitration: arbitrator already active")
	ErrNotRegistered      = nativecommon.NewError(nativecommon.KindState, "arbitration: arbitrator not registered")
	ErrNotActive          = nativecommon.NewError(nativecommon.KindState, "arbitration: arbitrator not active")
	ErrNoCandidate        = nativecommon.NewError(nativecommon.KindState, "arbitration: no eligible arbitrator available")
	ErrDisputeExists      = nativecommon.NewError(nativecommon.KindState, "arbitration: dispute already assigned")
	ErrDisputeNotFound    = nativecommon.NewError(nativecommon.KindState, "arbitration: dispute not found")
	ErrDisputeResolved    = nativecommon.NewError(nativecommon.KindState, "arbitration: dispute already resolved")
	ErrDisputeNotResolved = nativecommon.NewError(nativecommon.KindState, "arbitration: dispute not resolved")
	ErrAlreadyVoted       = nativecommon.NewError(nativecommon.KindState, "arbitration: already voted")
	ErrRatingSubmitted    = nativecommon.NewError(nativecommon.KindState, "arbitration: rating already submitted")

	ErrDisputeTimeout = nativecommon.NewError(nativecommon.KindTiming, "arbitration: ruling window closed")

	ErrNotEligibleVoter      = nativecommon.NewError(nativecommon.KindAuthorization, "arbitration: caller is not an eligible voter")
	ErrNotAssignedArbitrator = nativecommon.NewError(nativecommon.KindAuthorization, "arbitration: caller is not the assigned arbitrator")
	ErrNotParticipant        = nativecommon.NewError(nativecommon.KindAuthorization, "arbitration: caller is not a participant")
)

var (
	errNilMetadata = errors.New("arbitration registry: metadata source not configured")
	errNilRegistry = errors.New("arbitration engine: registry not configured")
	errNilBackend  = errors.New("arbitration engine: escrow backend not configured")
)
