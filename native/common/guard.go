package common

var (
	ErrModulePaused  = NewError(KindState, "module paused")
	ErrReentrantCall = NewError(KindState, "reentrant call")
	ErrUnauthorized  = NewError(KindAuthorization, "caller lacks required role")
)

// PauseView exposes the pause switches controlled by the admin channel.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyLock is a scoped guard against reentrant invocation. Each
// state-mutating entry point acquires the lock on entry and releases it on
// every exit path; a value-transfer recipient calling back in while the lock
// is held fails with ErrReentrantCall.
type ReentrancyLock struct {
	locked bool
}

// Enter acquires the lock and returns the matching release function. Callers
// defer the release immediately after a successful acquire.
func (l *ReentrancyLock) Enter() (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	if l.locked {
		return nil, ErrReentrantCall
	}
	l.locked = true
	return func() { l.locked = false }, nil
}

// RoleAuthority answers capability checks for privileged operations.
type RoleAuthority interface {
	HasRole(role string, addr [20]byte) bool
}

// RequireRole rejects callers that do not hold the named role. A nil
// authority denies everything, so privileged entry points fail closed when
// wiring is incomplete.
func RequireRole(auth RoleAuthority, role string, addr [20]byte) error {
	if auth == nil || !auth.HasRole(role, addr) {
		return ErrUnauthorized
	}
	return nil
}
