package escrow

import (
	"encoding/binary"
	"math/big"

	nativecommon "custodia/native/common"
)

// CommitDispute stores a commitment hash that locks in a party's intent to
// dispute before the selection seed is knowable. The stake is custody-held
// until the dispute settles.
//
// A commitment left unrevealed past its deadline is abandoned but not
// cleared: the escrow stays non-disputed and still resolves via the happy
// path or expiry refund, while the stake remains locked. Clearing expired
// commitments is deliberately not supported here.
func (e *Engine) CommitDispute(id uint64, caller [20]byte, commitment [32]byte, stake *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return err
	}
	defer exit()
	if e.ledger == nil {
		return errNilLedger
	}
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Resolved {
		return ErrAlreadyResolved
	}
	if esc.Disputed {
		return ErrAlreadyDisputed
	}
	if !esc.IsParticipant(caller) {
		return ErrNotParticipant
	}
	now := e.now()
	if now < esc.ArbitratorEligibleAt {
		return ErrDisputeTooEarly
	}
	if _, ok := e.state.CommitmentGet(id); ok {
		return ErrAlreadyDisputed
	}
	deposit := cloneBigInt(stake)
	if deposit.Cmp(esc.DisputeStake) < 0 {
		return ErrInsufficientStake
	}
	if err := e.ledger.Deposit(caller, deposit); err != nil {
		return err
	}
	record := &DisputeCommitment{
		EscrowID:       id,
		Commitment:     commitment,
		Committer:      caller,
		Stake:          deposit,
		RevealDeadline: now + e.params.RevealWindow,
	}
	if err := e.state.CommitmentPut(record); err != nil {
		return err
	}
	e.emit(NewDisputeCommittedEvent(record))
	return nil
}

// RevealDispute verifies the commitment against the supplied nonce and the
// caller's identity, marks the escrow disputed and assigns an arbitrator.
// The selection seed mixes the escrow creation time, the rotating process
// seed, the revealed nonce and the escrow id, so it is fixed only after the
// reveal. A failed assignment (no candidate available) unwinds the whole
// reveal; the caller retries while the window is open.
func (e *Engine) RevealDispute(id uint64, caller [20]byte, nonce [32]byte) ([20]byte, error) {
	var none [20]byte
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return none, err
	}
	exit, err := e.lock.Enter()
	if err != nil {
		return none, err
	}
	defer exit()
	if e.assigner == nil {
		return none, errNilAssigner
	}
	if e.seeds == nil {
		return none, errNilSeeds
	}
	esc, err := e.loadEscrow(id)
	if err != nil {
		return none, err
	}
	if esc.Resolved {
		return none, ErrAlreadyResolved
	}
	if esc.Disputed {
		return none, ErrAlreadyDisputed
	}
	commitment, ok := e.state.CommitmentGet(id)
	if !ok {
		return none, ErrCommitmentNotFound
	}
	if commitment.Revealed {
		return none, ErrAlreadyRevealed
	}
	// Binding check precedes the deadline check: a wrong nonce is a
	// validation failure regardless of timing.
	if ComputeCommitment(id, nonce, caller) != commitment.Commitment {
		return none, ErrInvalidCommitment
	}
	if e.now() > commitment.RevealDeadline {
		return none, ErrRevealDeadlinePassed
	}
	var createdBuf, idBuf [8]byte
	binary.BigEndian.PutUint64(createdBuf[:], uint64(esc.CreatedAt))
	binary.BigEndian.PutUint64(idBuf[:], id)
	seed := e.seeds.Next(createdBuf[:], nonce[:], idBuf[:])
	arbitrator, err := e.assigner.Assign(id, seed)
	if err != nil {
		return none, err
	}
	commitment.Revealed = true
	if err := e.state.CommitmentPut(commitment); err != nil {
		return none, err
	}
	esc.Disputed = true
	esc.Arbitrator = arbitrator
	if err := e.storeEscrow(esc); err != nil {
		return none, err
	}
	e.emit(NewDisputedEvent(esc, caller))
	return arbitrator, nil
}
