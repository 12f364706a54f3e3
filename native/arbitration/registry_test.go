package arbitration

import (
	"bytes"
	"errors"
	"testing"

	nativecommon "custodia/native/common"
)

type metadataStub struct {
	reputation    map[[20]byte]uint32
	participation map[[20]byte]uint32
}

func newMetadataStub() *metadataStub {
	return &metadataStub{
		reputation:    make(map[[20]byte]uint32),
		participation: make(map[[20]byte]uint32),
	}
}

func (m *metadataStub) set(addr [20]byte, rep, part uint32) {
	m.reputation[addr] = rep
	m.participation[addr] = part
}

func (m *metadataStub) Reputation(addr [20]byte) (uint32, error) {
	return m.reputation[addr], nil
}

func (m *metadataStub) Participation(addr [20]byte) (uint32, error) {
	return m.participation[addr], nil
}

type roleStub map[[20]byte]bool

func (r roleStub) HasRole(role string, addr [20]byte) bool {
	return role == RoleAdmin && r[addr]
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestRegistry(t *testing.T) (*Registry, *metadataStub) {
	t.Helper()
	metadata := newMetadataStub()
	registry := NewRegistry(metadata)
	registry.SetNowFunc(func() int64 { return 1_700_000_000 })
	return registry, metadata
}

func TestRegisterEnforcesMinimums(t *testing.T) {
	registry, metadata := newTestRegistry(t)
	addr := testAddr(0x01)

	if _, err := registry.Register(addr); !errors.Is(err, ErrReputationTooLow) {
		t.Fatalf("unknown address: expected ErrReputationTooLow, got %v", err)
	}
	metadata.set(addr, 80, 0)
	if _, err := registry.Register(addr); !errors.Is(err, ErrParticipationTooLow) {
		t.Fatalf("expected ErrParticipationTooLow, got %v", err)
	}
	metadata.set(addr, 80, 3)
	arb, err := registry.Register(addr)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if arb.Reputation != 80 || arb.ParticipationIndex != 3 || !arb.IsActive {
		t.Fatalf("registration readings not applied: %+v", arb)
	}
	if arb.TotalCases != 0 || arb.SuccessfulCases != 0 {
		t.Fatalf("case counters must start at zero")
	}
	if _, err := registry.Register(addr); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("double register: expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestDeactivateRequiresRole(t *testing.T) {
	registry, metadata := newTestRegistry(t)
	admin := testAddr(0xAD)
	addr := testAddr(0x01)
	metadata.set(addr, 80, 3)
	if _, err := registry.Register(addr); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := registry.Deactivate(admin, addr); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("no roles wired: expected ErrUnauthorized, got %v", err)
	}
	registry.SetRoles(roleStub{admin: true})
	if err := registry.Deactivate(testAddr(0x99), addr); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("non-admin: expected ErrUnauthorized, got %v", err)
	}
	if err := registry.Deactivate(admin, addr); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if registry.IsActive(addr) {
		t.Fatalf("arbitrator still active")
	}
	if err := registry.Deactivate(admin, addr); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if _, ok := registry.SelectCandidate(true); ok {
		t.Fatalf("deactivated arbitrator must not be selectable")
	}
}

func registerWithHistory(t *testing.T, registry *Registry, metadata *metadataStub, addr [20]byte, rep, part uint32, total, success int) {
	t.Helper()
	metadata.set(addr, rep, part)
	if _, err := registry.Register(addr); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	for i := 0; i < total; i++ {
		if err := registry.RecordCaseOpened(addr); err != nil {
			t.Fatalf("case open failed: %v", err)
		}
		if err := registry.RecordCaseResolved(addr, i < success); err != nil {
			t.Fatalf("case resolve failed: %v", err)
		}
	}
}

func TestWeightedSelectionPrefersTrackRecord(t *testing.T) {
	registry, metadata := newTestRegistry(t)
	steady := testAddr(0x01)
	fresh := testAddr(0x02)
	mediocre := testAddr(0x03)

	// High reputation but no proven cases scores zero.
	registerWithHistory(t, registry, metadata, fresh, 95, 10, 0, 0)
	// Long tenure, weak outcomes.
	registerWithHistory(t, registry, metadata, mediocre, 60, 10, 10, 3)
	// Consistently successful.
	registerWithHistory(t, registry, metadata, steady, 80, 10, 10, 9)

	candidate, ok := registry.SelectCandidate(true)
	if !ok {
		t.Fatalf("expected a candidate")
	}
	if candidate != steady {
		t.Fatalf("expected steady performer, got %x", candidate)
	}
}

func TestSelectionIsDeterministic(t *testing.T) {
	registry, metadata := newTestRegistry(t)
	for i := byte(1); i <= 4; i++ {
		registerWithHistory(t, registry, metadata, testAddr(i), 60+uint32(i), 5, int(i), int(i))
	}
	first, ok := registry.SelectCandidate(true)
	if !ok {
		t.Fatalf("expected a candidate")
	}
	second, _ := registry.SelectCandidate(true)
	if first != second {
		t.Fatalf("weighted selection must be a pure function of registry state")
	}

	seed := [32]byte{0x10, 0x20}
	hashFirst, ok := registry.SelectBySeed(seed, true)
	if !ok {
		t.Fatalf("expected a hash candidate")
	}
	hashSecond, _ := registry.SelectBySeed(seed, true)
	if hashFirst != hashSecond {
		t.Fatalf("seeded selection must be deterministic for an identical seed")
	}
}

func TestSelectionSkipsOverloaded(t *testing.T) {
	registry, metadata := newTestRegistry(t)
	params := DefaultParams()
	params.MaxOpenDisputes = 1
	registry.SetParams(params)

	busy := testAddr(0x01)
	idle := testAddr(0x02)
	registerWithHistory(t, registry, metadata, busy, 90, 10, 5, 5)
	registerWithHistory(t, registry, metadata, idle, 60, 5, 5, 3)

	if err := registry.RecordCaseOpened(busy); err != nil {
		t.Fatalf("case open failed: %v", err)
	}
	candidate, ok := registry.SelectCandidate(true)
	if !ok || candidate != idle {
		t.Fatalf("expected overloaded arbitrator skipped, got %x ok=%v", candidate, ok)
	}

	if err := registry.RecordCaseOpened(idle); err != nil {
		t.Fatalf("case open failed: %v", err)
	}
	if _, ok := registry.SelectCandidate(true); ok {
		t.Fatalf("all overloaded: expected no candidate")
	}
}

func TestApplyRatingBounds(t *testing.T) {
	for weight := uint32(0); weight <= 100; weight += 10 {
		for rating := RatingMin; rating <= RatingMax; rating++ {
			for prior := uint32(0); prior <= ReputationMax; prior += 25 {
				registry, metadata := newTestRegistry(t)
				params := DefaultParams()
				params.RatingWeight = weight
				params.MinReputation = 0
				params.MinParticipation = 0
				registry.SetParams(params)
				addr := testAddr(0x01)
				metadata.set(addr, prior, 1)
				if _, err := registry.Register(addr); err != nil {
					t.Fatalf("register failed: %v", err)
				}
				updated, err := registry.ApplyRating(addr, rating)
				if err != nil {
					t.Fatalf("apply rating failed: %v", err)
				}
				if updated > ReputationMax {
					t.Fatalf("reputation escaped bounds: weight=%d rating=%d prior=%d got=%d", weight, rating, prior, updated)
				}
			}
		}
	}
}

func TestApplyRatingEWMA(t *testing.T) {
	registry, metadata := newTestRegistry(t)
	addr := testAddr(0x01)
	metadata.set(addr, 80, 1)
	if _, err := registry.Register(addr); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	// weight 20, rating 5 scales to 100: (80*80 + 100*20) / 100 = 84.
	updated, err := registry.ApplyRating(addr, 5)
	if err != nil {
		t.Fatalf("apply rating failed: %v", err)
	}
	if updated != 84 {
		t.Fatalf("expected EWMA result 84, got %d", updated)
	}
	if _, err := registry.ApplyRating(addr, 0); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating 0: expected ErrInvalidRating, got %v", err)
	}
	if _, err := registry.ApplyRating(addr, 6); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating 6: expected ErrInvalidRating, got %v", err)
	}
}

func TestCaseCounters(t *testing.T) {
	registry, metadata := newTestRegistry(t)
	addr := testAddr(0x01)
	metadata.set(addr, 80, 1)
	if _, err := registry.Register(addr); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.RecordCaseOpened(addr); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := registry.RecordCaseResolved(addr, true); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	arb, _ := registry.Get(addr)
	if arb.TotalCases != 1 || arb.SuccessfulCases != 1 || arb.OpenCases != 0 {
		t.Fatalf("counter drift: %+v", arb)
	}
	if arb.SuccessfulCases > arb.TotalCases {
		t.Fatalf("successful cases exceeded total")
	}
	if err := registry.RecordCaseOpened(testAddr(0x99)); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}
