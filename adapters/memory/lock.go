// Package memory provides in-process lock.Adapter and breaker.Adapter
// implementations backed by a mutex-guarded map and sony/gobreaker/v2
// respectively — useful for tests and for single-process deployments
// that don't need a shared backing store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/resilientcore/resilientcore/lock"
)

type lockRecord struct {
	owner        string
	expiresAt    time.Time
	unexpireable bool
}

func (r lockRecord) expired(now time.Time) bool {
	return !r.unexpireable && !r.expiresAt.After(now)
}

// LockAdapter is an in-memory, single-process lock.Adapter. All
// operations are atomic with respect to each other via a single mutex
// (§6.1's atomicity requirements are satisfied trivially since there is
// no concurrent writer outside this process).
type LockAdapter struct {
	mu      sync.Mutex
	records map[string]lockRecord
}

// NewLockAdapter constructs an empty LockAdapter.
func NewLockAdapter() *LockAdapter {
	return &LockAdapter{records: make(map[string]lockRecord)}
}

func (a *LockAdapter) TryInsert(ctx context.Context, key, owner string, ttl lock.TTL) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	rec, exists := a.records[key]
	if exists && !rec.expired(now) && rec.owner != owner {
		return false, nil
	}

	if exists && !rec.expired(now) && rec.owner == owner {
		// Re-acquisition by the same owner is a no-op: preserved, not
		// extended (§4.1, §9 "re-acquire policy").
		return true, nil
	}

	a.records[key] = lockRecord{
		owner:        owner,
		expiresAt:    ttl.ExpiresAt(now),
		unexpireable: ttl.IsUnexpireable(),
	}
	return true, nil
}

func (a *LockAdapter) Release(ctx context.Context, key, owner string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, exists := a.records[key]
	if !exists || rec.expired(time.Now()) || rec.owner != owner {
		return false, nil
	}
	delete(a.records, key)
	return true, nil
}

func (a *LockAdapter) ForceRelease(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, exists := a.records[key]
	hadRecord := exists && !rec.expired(time.Now())
	delete(a.records, key)
	return hadRecord, nil
}

func (a *LockAdapter) Refresh(ctx context.Context, key, owner string, newTTL lock.TTL) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, exists := a.records[key]
	if !exists || rec.expired(time.Now()) || rec.owner != owner || rec.unexpireable {
		return false, nil
	}
	rec.expiresAt = newTTL.ExpiresAt(time.Now())
	rec.unexpireable = newTTL.IsUnexpireable()
	a.records[key] = rec
	return true, nil
}

func (a *LockAdapter) GetRecord(ctx context.Context, key string) (lock.Record, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, exists := a.records[key]
	if !exists || rec.expired(time.Now()) {
		return lock.Record{}, false, nil
	}
	return lock.Record{Owner: rec.owner, ExpiresAt: rec.expiresAt, Unexpireable: rec.unexpireable}, true, nil
}

func (a *LockAdapter) Check(ctx context.Context) error { return nil }
