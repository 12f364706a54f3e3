package arbitration

import (
	"bytes"
	"encoding/binary"
	"sort"
	"time"

	"custodia/core/events"
	"custodia/core/types"
	nativecommon "custodia/native/common"
)

// RoleAdmin gates privileged registry operations such as deactivation.
const RoleAdmin = "arbitration.admin"

// Registry owns the Arbitrator records and computes selection scores. It is
// instantiated per process and injected into the resolution engine, never
// accessed as a hidden global.
type Registry struct {
	arbitrators map[[20]byte]*Arbitrator
	metadata    MetadataSource
	roles       nativecommon.RoleAuthority
	emitter     events.Emitter
	params      Params
	nowFn       func() int64
}

// NewRegistry constructs an empty registry reading eligibility metadata from
// the supplied source.
func NewRegistry(metadata MetadataSource) *Registry {
	return &Registry{
		arbitrators: make(map[[20]byte]*Arbitrator),
		metadata:    metadata,
		emitter:     events.NoopEmitter{},
		params:      DefaultParams(),
		nowFn:       func() int64 { return time.Now().Unix() },
	}
}

// SetRoles configures the authority consulted for privileged operations.
func (r *Registry) SetRoles(roles nativecommon.RoleAuthority) { r.roles = roles }

// SetParams overrides the registry parameters.
func (r *Registry) SetParams(params Params) { r.params = params }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source, primarily used in tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(registryEvent{evt: event})
}

// Get returns a copy of the arbitrator record.
func (r *Registry) Get(addr [20]byte) (*Arbitrator, bool) {
	arb, ok := r.arbitrators[addr]
	if !ok {
		return nil, false
	}
	return arb.Clone(), true
}

// IsActive reports whether addr is currently registered and active.
func (r *Registry) IsActive(addr [20]byte) bool {
	arb, ok := r.arbitrators[addr]
	return ok && arb.IsActive
}

// Register self-registers the caller using the external reputation and
// participation readings. A returning arbitrator keeps its case history;
// first-time registrations start with zeroed counters.
func (r *Registry) Register(caller [20]byte) (*Arbitrator, error) {
	if r.metadata == nil {
		return nil, errNilMetadata
	}
	if caller == ([20]byte{}) {
		return nil, ErrInvalidAddress
	}
	if existing, ok := r.arbitrators[caller]; ok && existing.IsActive {
		return nil, ErrAlreadyRegistered
	}
	reputation, err := r.metadata.Reputation(caller)
	if err != nil {
		return nil, err
	}
	participation, err := r.metadata.Participation(caller)
	if err != nil {
		return nil, err
	}
	if reputation < r.params.MinReputation {
		return nil, ErrReputationTooLow
	}
	if participation < r.params.MinParticipation {
		return nil, ErrParticipationTooLow
	}
	if reputation > ReputationMax {
		reputation = ReputationMax
	}
	now := r.nowFn()
	arb, ok := r.arbitrators[caller]
	if !ok {
		arb = &Arbitrator{Address: caller, RegisteredAt: now}
		r.arbitrators[caller] = arb
	}
	arb.Reputation = reputation
	arb.ParticipationIndex = participation
	arb.IsActive = true
	arb.LastActiveTimestamp = now
	r.emit(NewRegisteredEvent(arb))
	return arb.Clone(), nil
}

// Deactivate removes addr from the selectable set. Disputes already assigned
// to the arbitrator are not invalidated.
func (r *Registry) Deactivate(authority, addr [20]byte) error {
	if err := nativecommon.RequireRole(r.roles, RoleAdmin, authority); err != nil {
		return err
	}
	arb, ok := r.arbitrators[addr]
	if !ok {
		return ErrNotRegistered
	}
	if !arb.IsActive {
		return ErrNotActive
	}
	arb.IsActive = false
	r.emit(NewDeactivatedEvent(arb))
	return nil
}

// score is the selection weight: reputation x success rate x participation.
// Arbitrators with no case history score zero but remain selectable; the
// success-rate factor only differentiates proven candidates.
func score(a *Arbitrator) uint64 {
	return uint64(a.Reputation) * uint64(a.ParticipationIndex) * a.SuccessRateBps()
}

// activeSorted returns the active arbitrators in ascending address order so
// every selection pass observes the same iteration order.
func (r *Registry) activeSorted(excludeOverloaded bool) []*Arbitrator {
	candidates := make([]*Arbitrator, 0, len(r.arbitrators))
	for _, arb := range r.arbitrators {
		if !arb.IsActive {
			continue
		}
		if excludeOverloaded && r.params.MaxOpenDisputes > 0 && arb.OpenCases >= r.params.MaxOpenDisputes {
			continue
		}
		candidates = append(candidates, arb)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return bytes.Compare(candidates[i].Address[:], candidates[j].Address[:]) < 0
	})
	return candidates
}

// SelectCandidate returns the active arbitrator maximizing the selection
// score, ties broken toward the lowest address. The second return is false
// when the active set is empty or fully loaded; callers treat that as a
// retryable condition.
func (r *Registry) SelectCandidate(excludeOverloaded bool) ([20]byte, bool) {
	candidates := r.activeSorted(excludeOverloaded)
	if len(candidates) == 0 {
		return [20]byte{}, false
	}
	best := candidates[0]
	bestScore := score(best)
	for _, arb := range candidates[1:] {
		if s := score(arb); s > bestScore {
			best, bestScore = arb, s
		}
	}
	return best.Address, true
}

// SelectBySeed maps the selection seed onto the sorted active set. This is
// the raw deterministic fallback strategy; the weighted selector is primary.
func (r *Registry) SelectBySeed(seed [32]byte, excludeOverloaded bool) ([20]byte, bool) {
	candidates := r.activeSorted(excludeOverloaded)
	if len(candidates) == 0 {
		return [20]byte{}, false
	}
	index := binary.BigEndian.Uint64(seed[24:]) % uint64(len(candidates))
	return candidates[index].Address, true
}

// RecordCaseOpened bumps the case counters when a dispute is assigned.
func (r *Registry) RecordCaseOpened(addr [20]byte) error {
	arb, ok := r.arbitrators[addr]
	if !ok {
		return ErrNotRegistered
	}
	arb.TotalCases++
	arb.OpenCases++
	arb.LastActiveTimestamp = r.nowFn()
	return nil
}

// RecordCaseResolved closes an open case, crediting the success counter when
// the arbitrator contributed to the outcome.
func (r *Registry) RecordCaseResolved(addr [20]byte, success bool) error {
	arb, ok := r.arbitrators[addr]
	if !ok {
		return ErrNotRegistered
	}
	if arb.OpenCases > 0 {
		arb.OpenCases--
	}
	if success {
		arb.SuccessfulCases++
	}
	arb.LastActiveTimestamp = r.nowFn()
	return nil
}

// ApplyRating folds one 1-5 rating into the arbitrator's reputation using an
// exponentially weighted moving average. The fixed weight bounds the
// influence of any single rating, so one bad outcome cannot blacklist an
// arbitrator. Returns the updated reputation.
func (r *Registry) ApplyRating(addr [20]byte, rating uint8) (uint32, error) {
	if rating < RatingMin || rating > RatingMax {
		return 0, ErrInvalidRating
	}
	arb, ok := r.arbitrators[addr]
	if !ok {
		return 0, ErrNotRegistered
	}
	weight := r.params.RatingWeight
	if weight > 100 {
		weight = 100
	}
	scaled := uint32(rating) * ReputationMax / uint32(RatingMax)
	updated := (arb.Reputation*(100-weight) + scaled*weight) / 100
	if updated > ReputationMax {
		updated = ReputationMax
	}
	arb.Reputation = updated
	r.emit(NewReputationUpdatedEvent(arb, rating))
	return updated, nil
}
