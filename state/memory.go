// Package state provides the in-process state backend for the escrow core:
// escrow and commitment records, a single-token account ledger, role grants
// and pause switches. Every operation runs to completion against this store
// before the next is admitted, so the store itself needs no locking beyond
// the engines' reentrancy guards.
package state

import (
	"math/big"

	nativecommon "custodia/native/common"
	"custodia/native/escrow"
)

// ErrInsufficientBalance is returned when a deposit exceeds the payer's
// ledger balance.
var ErrInsufficientBalance = nativecommon.NewError(nativecommon.KindEconomic, "ledger: insufficient balance")

// Memory implements the escrow engine's state interface with plain maps.
// Escrow identifiers are allocated monotonically and never reused.
type Memory struct {
	escrows     map[uint64]*escrow.Escrow
	commitments map[uint64]*escrow.DisputeCommitment
	nextID      uint64
}

// NewMemory constructs an empty state backend.
func NewMemory() *Memory {
	return &Memory{
		escrows:     make(map[uint64]*escrow.Escrow),
		commitments: make(map[uint64]*escrow.DisputeCommitment),
	}
}

// NextEscrowID allocates the next escrow identifier, starting at 1.
func (m *Memory) NextEscrowID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

// EscrowPut stores a copy of the escrow record.
func (m *Memory) EscrowPut(e *escrow.Escrow) error {
	m.escrows[e.ID] = e.Clone()
	return nil
}

// EscrowGet returns a copy of the escrow record.
func (m *Memory) EscrowGet(id uint64) (*escrow.Escrow, bool) {
	e, ok := m.escrows[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// CommitmentPut stores a copy of the dispute commitment.
func (m *Memory) CommitmentPut(c *escrow.DisputeCommitment) error {
	m.commitments[c.EscrowID] = c.Clone()
	return nil
}

// CommitmentGet returns a copy of the dispute commitment for the escrow.
func (m *Memory) CommitmentGet(escrowID uint64) (*escrow.DisputeCommitment, bool) {
	c, ok := m.commitments[escrowID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Ledger is a single-token account ledger with a module custody vault. It
// stands in for the external value ledger the escrow core consumes.
type Ledger struct {
	balances map[[20]byte]*big.Int
	vault    *big.Int
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[[20]byte]*big.Int),
		vault:    big.NewInt(0),
	}
}

// Mint credits an account. Used at genesis and in tests.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.balances[addr] = new(big.Int).Add(l.BalanceOf(addr), amount)
}

// BalanceOf returns a copy of the account balance.
func (l *Ledger) BalanceOf(addr [20]byte) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// VaultBalance returns a copy of the custody vault balance.
func (l *Ledger) VaultBalance() *big.Int {
	return new(big.Int).Set(l.vault)
}

// Deposit moves amount from the payer's account into module custody.
func (l *Ledger) Deposit(from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	bal := l.BalanceOf(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[from] = bal.Sub(bal, amount)
	l.vault.Add(l.vault, amount)
	return nil
}

// Transfer pays amount out of module custody.
func (l *Ledger) Transfer(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if l.vault.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.vault.Sub(l.vault, amount)
	l.balances[to] = new(big.Int).Add(l.BalanceOf(to), amount)
	return nil
}

// RoleSet is a plain role grant table satisfying the common.RoleAuthority
// guard.
type RoleSet struct {
	grants map[string]map[[20]byte]bool
}

// NewRoleSet constructs an empty role table.
func NewRoleSet() *RoleSet {
	return &RoleSet{grants: make(map[string]map[[20]byte]bool)}
}

// Grant gives addr the named role.
func (r *RoleSet) Grant(role string, addr [20]byte) {
	if r.grants[role] == nil {
		r.grants[role] = make(map[[20]byte]bool)
	}
	r.grants[role][addr] = true
}

// HasRole implements common.RoleAuthority.
func (r *RoleSet) HasRole(role string, addr [20]byte) bool {
	return r != nil && r.grants[role][addr]
}

// PauseSwitchboard is a per-module pause flag table satisfying the
// common.PauseView guard.
type PauseSwitchboard struct {
	paused map[string]bool
}

// NewPauseSwitchboard constructs a switchboard with every module running.
func NewPauseSwitchboard() *PauseSwitchboard {
	return &PauseSwitchboard{paused: make(map[string]bool)}
}

// Pause stops the named module.
func (p *PauseSwitchboard) Pause(module string) { p.paused[module] = true }

// Resume restarts the named module.
func (p *PauseSwitchboard) Resume(module string) { delete(p.paused, module) }

// IsPaused implements common.PauseView.
func (p *PauseSwitchboard) IsPaused(module string) bool {
	return p != nil && p.paused[module]
}
