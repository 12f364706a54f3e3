package escrow

import (
	"math/big"
	"time"

	"custodia/core/events"
	"custodia/core/types"
	nativecommon "custodia/native/common"
)

const moduleName = "escrow"

type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id uint64) (*Escrow, bool)
	NextEscrowID() (uint64, error)
	CommitmentPut(*DisputeCommitment) error
	CommitmentGet(escrowID uint64) (*DisputeCommitment, bool)
}

// Ledger is the external value ledger holding custody of escrowed funds. The
// engine never inspects balances beyond these two calls.
type Ledger interface {
	// Deposit moves amount from the payer into module custody.
	Deposit(from [20]byte, amount *big.Int) error
	// Transfer pays amount out of module custody.
	Transfer(to [20]byte, amount *big.Int) error
}

// ArbitratorAssigner attaches an arbitrator to a freshly revealed dispute.
// Implemented by the arbitration engine; injected to keep the dependency
// one-directional.
type ArbitratorAssigner interface {
	Assign(escrowID uint64, seed [32]byte) ([20]byte, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine owns Escrow and DisputeCommitment records and drives the custody
// lifecycle: create, happy-path release/refund, commit-reveal dispute entry
// and the terminal dispute settlement invoked by the resolution engine.
type Engine struct {
	state    engineState
	ledger   Ledger
	assigner ArbitratorAssigner
	seeds    *SeedSource
	emitter  events.Emitter
	params   Params
	pauses   nativecommon.PauseView
	lock     nativecommon.ReentrancyLock
	nowFn    func() int64
}

// NewEngine creates an escrow engine with default parameters and a no-op
// emitter. State, ledger, assigner and seed source are wired by the caller.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the external value ledger.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetAssigner configures the arbitrator assignment hook invoked on reveal.
func (e *Engine) SetAssigner(assigner ArbitratorAssigner) { e.assigner = assigner }

// SetSeedSource configures the rotating selection seed.
func (e *Engine) SetSeedSource(seeds *SeedSource) { e.seeds = seeds }

// SetParams overrides the escrow parameters.
func (e *Engine) SetParams(params Params) { e.params = params }

// SetPauses configures the pause switches checked at every entry point.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
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
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.EscrowPut(esc)
}

// Get returns a copy of the escrow record.
func (e *Engine) Get(id uint64) (*Escrow, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// Create opens a new escrow funded by the buyer. The deposit transfers into
// module custody before the record is persisted.
func (e *Engine) Create(buyer, seller [20]byte, duration int64, amount *big.Int) (*Escrow, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return nil, err
	}
	defer exit()
	if e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if buyer == ([20]byte{}) || seller == ([20]byte{}) || buyer == seller {
		return nil, ErrInvalidAddress
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if duration < e.params.MinDuration || duration > e.params.MaxDuration {
		return nil, ErrInvalidDuration
	}
	id, err := e.state.NextEscrowID()
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Deposit(buyer, amt); err != nil {
		return nil, err
	}
	now := e.now()
	stake := new(big.Int).Mul(amt, new(big.Int).SetUint64(uint64(e.params.DisputeStakeBasis)))
	stake.Div(stake, big.NewInt(BasisPoints))
	esc := &Escrow{
		ID:                   id,
		Buyer:                buyer,
		Seller:               seller,
		Amount:               amt,
		DisputeStake:         stake,
		CreatedAt:            now,
		Expiry:               now + duration,
		ArbitratorEligibleAt: now + e.params.ArbitratorDelay,
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// Release settles a non-disputed escrow in favour of the seller when called
// by the buyer. A seller call is accepted but does nothing, so both parties
// can share the same entry point.
func (e *Engine) Release(id uint64, caller [20]byte) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return err
	}
	defer exit()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Resolved {
		return ErrAlreadyResolved
	}
	if !esc.IsParticipant(caller) {
		return ErrNotParticipant
	}
	if esc.Disputed {
		return ErrAlreadyDisputed
	}
	if caller == esc.Seller {
		return nil
	}
	return e.payout(esc, esc.Seller, false)
}

// Refund settles a non-disputed escrow in favour of the buyer when either the
// seller consents or the expiry has passed.
func (e *Engine) Refund(id uint64, caller [20]byte) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return err
	}
	defer exit()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Resolved {
		return ErrAlreadyResolved
	}
	if !esc.IsParticipant(caller) {
		return ErrNotParticipant
	}
	if esc.Disputed {
		return ErrAlreadyDisputed
	}
	if caller == esc.Buyer && e.now() <= esc.Expiry {
		return ErrExpiryNotReached
	}
	return e.payout(esc, esc.Buyer, false)
}

// AddVote tallies one vote on a disputed escrow and returns the updated
// counts. Voter eligibility and double-vote rejection are enforced by the
// resolution engine, which owns the per-dispute voter set.
func (e *Engine) AddVote(id uint64, choice Outcome) (uint8, uint8, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, 0, err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return 0, 0, err
	}
	defer exit()
	if !choice.Valid() {
		return 0, 0, ErrInvalidOutcome
	}
	esc, err := e.loadEscrow(id)
	if err != nil {
		return 0, 0, err
	}
	if esc.Resolved {
		return 0, 0, ErrAlreadyResolved
	}
	if !esc.Disputed {
		return 0, 0, ErrNotDisputed
	}
	switch choice {
	case OutcomeRelease:
		esc.ReleaseVotes++
	case OutcomeRefund:
		esc.RefundVotes++
	}
	if err := e.storeEscrow(esc); err != nil {
		return 0, 0, err
	}
	return esc.ReleaseVotes, esc.RefundVotes, nil
}

// SettleDispute pays out a disputed escrow according to the resolution
// engine's outcome and returns the commit stake to the committer in the same
// atomic unit.
func (e *Engine) SettleDispute(id uint64, outcome Outcome) error {
	exit, err := e.lock.Enter()
	if err != nil {
		return err
	}
	defer exit()
	if !outcome.Valid() {
		return ErrInvalidOutcome
	}
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Resolved {
		return ErrAlreadyResolved
	}
	if !esc.Disputed {
		return ErrNotDisputed
	}
	winner := esc.Buyer
	if outcome == OutcomeRelease {
		winner = esc.Seller
	}
	return e.payout(esc, winner, true)
}

// payout issues the single terminal transfer for an escrow: pay the winner,
// zero the amount, flip resolved. refundStake also returns a revealed
// commitment's stake to its committer.
func (e *Engine) payout(esc *Escrow, winner [20]byte, refundStake bool) error {
	if e.ledger == nil {
		return errNilLedger
	}
	amount := cloneBigInt(esc.Amount)
	if amount.Sign() > 0 {
		if err := e.ledger.Transfer(winner, amount); err != nil {
			return err
		}
	}
	if refundStake {
		if commitment, ok := e.state.CommitmentGet(esc.ID); ok && commitment.Revealed {
			stake := cloneBigInt(commitment.Stake)
			if stake.Sign() > 0 {
				if err := e.ledger.Transfer(commitment.Committer, stake); err != nil {
					return err
				}
			}
		}
	}
	esc.Amount = big.NewInt(0)
	esc.Resolved = true
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewResolvedEvent(esc, winner, amount))
	return nil
}
