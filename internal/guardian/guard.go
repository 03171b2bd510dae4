package guardian

import "sync"

// AccountGuard serializes validate-then-authorize sequences per account.
// Two concurrent order requests against the same account would otherwise
// both validate against the same open-exposure snapshot and both pass
// limits that only one of them fits within.
type AccountGuard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAccountGuard creates a new AccountGuard
func NewAccountGuard() *AccountGuard {
	return &AccountGuard{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-account mutex, creating it on first use.
// Callers must pair it with Unlock, normally via defer.
func (g *AccountGuard) Lock(accountID string) {
	g.mu.Lock()
	lock, ok := g.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[accountID] = lock
	}
	g.mu.Unlock()

	lock.Lock()
}

// Unlock releases the per-account mutex
func (g *AccountGuard) Unlock(accountID string) {
	g.mu.Lock()
	lock, ok := g.locks[accountID]
	g.mu.Unlock()
	if ok {
		lock.Unlock()
	}
}
