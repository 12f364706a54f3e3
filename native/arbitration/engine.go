package arbitration

import (
	"time"

	"custodia/core/events"
	"custodia/core/types"
	nativecommon "custodia/native/common"
	"custodia/native/escrow"
)

const moduleName = "arbitration"

// EscrowBackend is the narrow slice of the escrow engine the resolution
// engine needs: lookup, tallying and terminal settlement. The backend is a
// lookup-and-instruct channel; escrow records stay owned by the escrow store.
type EscrowBackend interface {
	Get(id uint64) (*escrow.Escrow, error)
	AddVote(id uint64, choice escrow.Outcome) (uint8, uint8, error)
	SettleDispute(id uint64, outcome escrow.Outcome) error
}

// voteThreshold is the strict majority of the three eligible voters.
const voteThreshold = 2

// Engine owns the Dispute records and drives assignment, 2-of-3 threshold
// voting, the single-arbitrator ruling path and post-resolution ratings.
type Engine struct {
	registry *Registry
	escrows  EscrowBackend
	disputes map[uint64]*Dispute
	emitter  events.Emitter
	params   Params
	pauses   nativecommon.PauseView
	lock     nativecommon.ReentrancyLock
	nowFn    func() int64
}

// NewEngine constructs a resolution engine bound to the supplied registry and
// escrow backend.
func NewEngine(registry *Registry, escrows EscrowBackend) *Engine {
	return &Engine{
		registry: registry,
		escrows:  escrows,
		disputes: make(map[uint64]*Dispute),
		emitter:  events.NoopEmitter{},
		params:   DefaultParams(),
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetParams overrides the engine parameters.
func (e *Engine) SetParams(params Params) { e.params = params }

// SetPauses configures the pause switches checked at every entry point.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(registryEvent{evt: event})
}

// Dispute returns a copy of the dispute record for the escrow.
func (e *Engine) Dispute(escrowID uint64) (*Dispute, bool) {
	d, ok := e.disputes[escrowID]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Assign picks an arbitrator for a freshly revealed dispute and opens the
// dispute record. Called from the reveal step; the seed is fixed by the
// reveal inputs, so identical registry state and seed always yield the same
// candidate. ErrNoCandidate is retryable: the caller re-attempts the reveal
// while its window is open.
func (e *Engine) Assign(escrowID uint64, seed [32]byte) ([20]byte, error) {
	var none [20]byte
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return none, err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return none, err
	}
	defer exit()
	if e.registry == nil {
		return none, errNilRegistry
	}
	if _, ok := e.disputes[escrowID]; ok {
		return none, ErrDisputeExists
	}
	var candidate [20]byte
	var ok bool
	switch e.params.SelectionStrategy {
	case SelectionHash:
		candidate, ok = e.registry.SelectBySeed(seed, true)
	default:
		candidate, ok = e.registry.SelectCandidate(true)
	}
	if !ok {
		return none, ErrNoCandidate
	}
	if err := e.registry.RecordCaseOpened(candidate); err != nil {
		return none, err
	}
	d := &Dispute{
		EscrowID:   escrowID,
		Arbitrator: candidate,
		CreatedAt:  e.nowFn(),
		Votes:      make(map[[20]byte]escrow.Outcome),
	}
	e.disputes[escrowID] = d
	e.emit(NewDisputeCreatedEvent(d))
	return candidate, nil
}

// Vote records one vote from the buyer, the seller or the assigned
// arbitrator. The moment either tally reaches the 2-of-3 threshold the
// dispute settles within the same call; a 1-1 split waits for the third vote.
func (e *Engine) Vote(escrowID uint64, caller [20]byte, choice escrow.Outcome) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return err
	}
	defer exit()
	if e.escrows == nil {
		return errNilBackend
	}
	d, ok := e.disputes[escrowID]
	if !ok {
		return ErrDisputeNotFound
	}
	if d.Resolved {
		return ErrDisputeResolved
	}
	if !choice.Valid() {
		return ErrInvalidVote
	}
	esc, err := e.escrows.Get(escrowID)
	if err != nil {
		return err
	}
	switch caller {
	case esc.Buyer, esc.Seller:
	case d.Arbitrator:
		if e.registry == nil || !e.registry.IsActive(caller) {
			return ErrNotEligibleVoter
		}
	default:
		return ErrNotEligibleVoter
	}
	if _, voted := d.Votes[caller]; voted {
		return ErrAlreadyVoted
	}
	releaseVotes, refundVotes, err := e.escrows.AddVote(escrowID, choice)
	if err != nil {
		return err
	}
	d.Votes[caller] = choice
	e.emit(NewVoteEvent(d, caller, choice))
	if releaseVotes >= voteThreshold {
		return e.finalize(d, escrow.OutcomeRelease, "resolved by threshold vote", voteSuccess(d, escrow.OutcomeRelease))
	}
	if refundVotes >= voteThreshold {
		return e.finalize(d, escrow.OutcomeRefund, "resolved by threshold vote", voteSuccess(d, escrow.OutcomeRefund))
	}
	return nil
}

// voteSuccess reports whether the arbitrator earned the success credit on a
// threshold settlement: its own vote must have matched the winning side.
func voteSuccess(d *Dispute, outcome escrow.Outcome) bool {
	choice, voted := d.Votes[d.Arbitrator]
	return voted && choice == outcome
}

// Resolve is the single-arbitrator ruling path. Only the assigned arbitrator
// may rule, and only within the dispute timeout. Deactivation after
// assignment does not revoke the ruling power.
func (e *Engine) Resolve(escrowID uint64, caller [20]byte, outcome escrow.Outcome, note string) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return err
	}
	defer exit()
	if e.escrows == nil {
		return errNilBackend
	}
	d, ok := e.disputes[escrowID]
	if !ok {
		return ErrDisputeNotFound
	}
	if d.Resolved {
		return ErrDisputeResolved
	}
	if caller != d.Arbitrator {
		return ErrNotAssignedArbitrator
	}
	if !outcome.Valid() {
		return ErrInvalidVote
	}
	if e.params.DisputeTimeout > 0 && e.nowFn() > d.CreatedAt+e.params.DisputeTimeout {
		return ErrDisputeTimeout
	}
	// A ruling is the arbitrator's own outcome, so it always earns the
	// success credit, regardless of any party votes cast before it.
	return e.finalize(d, outcome, note, true)
}

// finalize settles the escrow, closes the dispute record and feeds the case
// outcome back into the registry.
func (e *Engine) finalize(d *Dispute, outcome escrow.Outcome, note string, success bool) error {
	if err := e.escrows.SettleDispute(d.EscrowID, outcome); err != nil {
		return err
	}
	d.Resolved = true
	d.ResolutionNote = note
	if e.registry != nil {
		if err := e.registry.RecordCaseResolved(d.Arbitrator, success); err != nil {
			return err
		}
	}
	e.emit(NewDisputeResolvedEvent(d, outcome))
	return nil
}

// SubmitRating lets the buyer or seller rate the assigned arbitrator once the
// dispute has resolved, feeding the registry's reputation average.
func (e *Engine) SubmitRating(escrowID uint64, caller [20]byte, rating uint8) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return err
	}
	defer exit()
	if e.escrows == nil {
		return errNilBackend
	}
	if e.registry == nil {
		return errNilRegistry
	}
	d, ok := e.disputes[escrowID]
	if !ok {
		return ErrDisputeNotFound
	}
	if !d.Resolved {
		return ErrDisputeNotResolved
	}
	esc, err := e.escrows.Get(escrowID)
	if err != nil {
		return err
	}
	switch caller {
	case esc.Buyer:
		if d.BuyerRating != 0 {
			return ErrRatingSubmitted
		}
	case esc.Seller:
		if d.SellerRating != 0 {
			return ErrRatingSubmitted
		}
	default:
		return ErrNotParticipant
	}
	if _, err := e.registry.ApplyRating(d.Arbitrator, rating); err != nil {
		return err
	}
	if caller == esc.Buyer {
		d.BuyerRating = rating
	} else {
		d.SellerRating = rating
	}
	d.ArbitratorRating = rating
	e.emit(NewRatingEvent(d, caller, rating))
	return nil
}
