// Package guard enforces the one-active-video-job-per-user rule. The
// "Animate" button is persistent on the chat side, so duplicate taps while
// a render is in flight are expected and must be rejected before any credit
// is charged.
package guard

import (
	"context"
	"sync"
)

// VideoGuard is the per-user mutual exclusion contract. TryAcquire is
// non-blocking; callers must release on every path, including errors.
type VideoGuard interface {
	TryAcquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string)
}

// MemoryGuard is the single-process implementation: a mutex-guarded set of
// user ids with an active video job. It does not coordinate across
// instances; multi-instance deployments use RedisGuard.
type MemoryGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{active: make(map[string]struct{})}
}

func (g *MemoryGuard) TryAcquire(_ context.Context, userID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.active[userID]; held {
		return false, nil
	}
	g.active[userID] = struct{}{}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, userID)
}
