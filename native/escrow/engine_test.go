package escrow

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	nativecommon "custodia/native/common"
)

type mockState struct {
	escrows     map[uint64]*Escrow
	commitments map[uint64]*DisputeCommitment
	nextID      uint64
}

func newMockState() *mockState {
	return &mockState{
		escrows:     make(map[uint64]*Escrow),
		commitments: make(map[uint64]*DisputeCommitment),
	}
}

func (m *mockState) EscrowPut(e *Escrow) error {
	m.escrows[e.ID] = e.Clone()
	return nil
}

func (m *mockState) EscrowGet(id uint64) (*Escrow, bool) {
	e, ok := m.escrows[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (m *mockState) NextEscrowID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) CommitmentPut(c *DisputeCommitment) error {
	m.commitments[c.EscrowID] = c.Clone()
	return nil
}

func (m *mockState) CommitmentGet(escrowID uint64) (*DisputeCommitment, bool) {
	c, ok := m.commitments[escrowID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

type mockLedger struct {
	balances map[[20]byte]*big.Int
	vault    *big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[[20]byte]*big.Int), vault: big.NewInt(0)}
}

func (l *mockLedger) balanceOf(addr [20]byte) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (l *mockLedger) mint(addr [20]byte, amount int64) {
	l.balances[addr] = new(big.Int).Add(l.balanceOf(addr), big.NewInt(amount))
}

func (l *mockLedger) Deposit(from [20]byte, amount *big.Int) error {
	bal := l.balanceOf(from)
	if bal.Cmp(amount) < 0 {
		return nativecommon.NewError(nativecommon.KindEconomic, "ledger: insufficient balance")
	}
	l.balances[from] = bal.Sub(bal, amount)
	l.vault.Add(l.vault, amount)
	return nil
}

func (l *mockLedger) Transfer(to [20]byte, amount *big.Int) error {
	if l.vault.Cmp(amount) < 0 {
		return errors.New("ledger: vault underflow")
	}
	l.vault.Sub(l.vault, amount)
	l.balances[to] = new(big.Int).Add(l.balanceOf(to), amount)
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type testClock struct {
	now int64
}

func (c *testClock) fn() func() int64 { return func() int64 { return c.now } }

func (c *testClock) advance(secs int64) { c.now += secs }

func newTestEngine(t *testing.T) (*Engine, *mockState, *mockLedger, *testClock) {
	t.Helper()
	state := newMockState()
	ledger := newMockLedger()
	clock := &testClock{now: 1_700_000_000}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetLedger(ledger)
	engine.SetNowFunc(clock.fn())
	engine.SetSeedSource(NewSeedSource([32]byte{0x01}))
	return engine, state, ledger, clock
}

func TestCreateValidation(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 10_000)

	if _, err := engine.Create(buyer, [20]byte{}, 86400, big.NewInt(1000)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("zero seller: expected ErrInvalidAddress, got %v", err)
	}
	if _, err := engine.Create(buyer, buyer, 86400, big.NewInt(1000)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("self-dealing: expected ErrInvalidAddress, got %v", err)
	}
	if _, err := engine.Create(buyer, seller, 86400, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := engine.Create(buyer, seller, 60, big.NewInt(1000)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("short duration: expected ErrInvalidDuration, got %v", err)
	}
	if _, err := engine.Create(buyer, seller, 365*86400, big.NewInt(1000)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("long duration: expected ErrInvalidDuration, got %v", err)
	}
	if nativecommon.KindOf(ErrInvalidDuration) != nativecommon.KindValidation {
		t.Fatalf("duration error must classify as validation")
	}
}

func TestCreateDepositsAndDerives(t *testing.T) {
	engine, _, ledger, clock := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 2_000_000)

	esc, err := engine.Create(buyer, seller, 2*86400, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if esc.ID != 1 {
		t.Fatalf("expected first id 1, got %d", esc.ID)
	}
	if esc.DisputeStake.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected stake 1000 (0.1%%), got %s", esc.DisputeStake)
	}
	if esc.Expiry != clock.now+2*86400 {
		t.Fatalf("expiry mismatch: %d", esc.Expiry)
	}
	if esc.ArbitratorEligibleAt != clock.now+86400 {
		t.Fatalf("eligibility mismatch: %d", esc.ArbitratorEligibleAt)
	}
	if ledger.balanceOf(buyer).Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("buyer balance not debited: %s", ledger.balanceOf(buyer))
	}
	if ledger.vault.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("vault not credited: %s", ledger.vault)
	}
}

func TestCreateInsufficientBalance(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 10)

	_, err := engine.Create(buyer, seller, 86400, big.NewInt(1000))
	if nativecommon.KindOf(err) != nativecommon.KindEconomic {
		t.Fatalf("expected economic error, got %v", err)
	}
}

func TestBuyerReleasePaysSeller(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 1000)

	esc, err := engine.Create(buyer, seller, 2*86400, big.NewInt(1000))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := engine.Release(esc.ID, buyer); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if ledger.balanceOf(seller).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("seller not paid: %s", ledger.balanceOf(seller))
	}
	stored, err := engine.Get(esc.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !stored.Resolved || stored.Amount.Sign() != 0 {
		t.Fatalf("escrow not terminal: resolved=%v amount=%s", stored.Resolved, stored.Amount)
	}
	if err := engine.Release(esc.ID, buyer); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("replay must fail with ErrAlreadyResolved, got %v", err)
	}
}

func TestSellerReleaseIsNoop(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 1000)

	esc, _ := engine.Create(buyer, seller, 86400, big.NewInt(1000))
	if err := engine.Release(esc.ID, seller); err != nil {
		t.Fatalf("seller release must not error: %v", err)
	}
	stored, _ := engine.Get(esc.ID)
	if stored.Resolved {
		t.Fatalf("seller release must not resolve the escrow")
	}
	if err := engine.Release(esc.ID, newTestAddress(0x99)); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("outsider release: expected ErrNotParticipant, got %v", err)
	}
}

func TestRefundBySellerConsent(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 500)

	esc, _ := engine.Create(buyer, seller, 86400, big.NewInt(500))
	if err := engine.Refund(esc.ID, seller); err != nil {
		t.Fatalf("consenting refund failed: %v", err)
	}
	if ledger.balanceOf(buyer).Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("buyer not refunded: %s", ledger.balanceOf(buyer))
	}
}

func TestRefundAfterExpiry(t *testing.T) {
	engine, _, ledger, clock := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 500)

	esc, err := engine.Create(buyer, seller, 3600, big.NewInt(500))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := engine.Refund(esc.ID, buyer); !errors.Is(err, ErrExpiryNotReached) {
		t.Fatalf("early buyer refund: expected ErrExpiryNotReached, got %v", err)
	}
	clock.advance(3601)
	if err := engine.Refund(esc.ID, buyer); err != nil {
		t.Fatalf("post-expiry refund failed: %v", err)
	}
	if ledger.balanceOf(buyer).Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("buyer not refunded: %s", ledger.balanceOf(buyer))
	}
	if err := engine.Refund(esc.ID, buyer); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("replay must fail with ErrAlreadyResolved, got %v", err)
	}
}

func TestPayoutHappensExactlyOnce(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 1000)

	esc, _ := engine.Create(buyer, seller, 86400, big.NewInt(1000))
	if err := engine.Release(esc.ID, buyer); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	for _, call := range []func() error{
		func() error { return engine.Release(esc.ID, buyer) },
		func() error { return engine.Refund(esc.ID, seller) },
		func() error { return engine.SettleDispute(esc.ID, OutcomeRefund) },
	} {
		err := call()
		if !errors.Is(err, ErrAlreadyResolved) {
			t.Fatalf("post-resolution call must fail with ErrAlreadyResolved, got %v", err)
		}
		if nativecommon.KindOf(err) != nativecommon.KindState {
			t.Fatalf("replay error must classify as state")
		}
	}
	if ledger.balanceOf(seller).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("payout amount drifted: %s", ledger.balanceOf(seller))
	}
	if ledger.vault.Sign() != 0 {
		t.Fatalf("vault must be empty after payout: %s", ledger.vault)
	}
}

func TestNotFound(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	if err := engine.Release(42, newTestAddress(0x01)); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
}

type pauseStub map[string]bool

func (p pauseStub) IsPaused(module string) bool { return p[module] }

func TestPausedModuleRejectsEntry(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	engine.SetPauses(pauseStub{"escrow": true})
	buyer := newTestAddress(0x01)
	ledger.mint(buyer, 1000)
	if _, err := engine.Create(buyer, newTestAddress(0x02), 86400, big.NewInt(1000)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}

func TestAddVoteGuarded(t *testing.T) {
	engine, state, ledger, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 1000)

	esc, err := engine.Create(buyer, seller, 86400, big.NewInt(1000))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	stored := state.escrows[esc.ID]
	stored.Disputed = true

	engine.SetPauses(pauseStub{"escrow": true})
	if _, _, err := engine.AddVote(esc.ID, OutcomeRelease); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("paused tally: expected ErrModulePaused, got %v", err)
	}
	engine.SetPauses(pauseStub{})
	release, refund, err := engine.AddVote(esc.ID, OutcomeRelease)
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if release != 1 || refund != 0 {
		t.Fatalf("unexpected tally: release=%d refund=%d", release, refund)
	}
}

// reentrantLedger calls back into the engine mid-transfer the way a malicious
// payout recipient would.
type reentrantLedger struct {
	*mockLedger
	engine   *Engine
	escrowID uint64
	caller   [20]byte
	inner    error
	fired    bool
}

func (l *reentrantLedger) Transfer(to [20]byte, amount *big.Int) error {
	if !l.fired {
		l.fired = true
		l.inner = l.engine.Release(l.escrowID, l.caller)
	}
	return l.mockLedger.Transfer(to, amount)
}

func TestReentrantReleaseBlocked(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	ledger.mint(buyer, 1000)

	esc, _ := engine.Create(buyer, seller, 86400, big.NewInt(1000))
	trap := &reentrantLedger{mockLedger: ledger, engine: engine, escrowID: esc.ID, caller: buyer}
	engine.SetLedger(trap)

	if err := engine.Release(esc.ID, buyer); err != nil {
		t.Fatalf("outer release failed: %v", err)
	}
	if !trap.fired {
		t.Fatalf("reentrant callback did not run")
	}
	if !errors.Is(trap.inner, nativecommon.ErrReentrantCall) {
		t.Fatalf("inner call must fail with ErrReentrantCall, got %v", trap.inner)
	}
	if ledger.balanceOf(seller).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("seller paid wrong amount: %s", ledger.balanceOf(seller))
	}
}
