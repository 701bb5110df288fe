package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuardSecondAcquireFails(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	ok, err := g.TryAcquire(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.TryAcquire(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryGuardReleaseAllowsReacquire(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	ok, _ := g.TryAcquire(ctx, "u1")
	require.True(t, ok)

	g.Release(ctx, "u1")

	ok, _ = g.TryAcquire(ctx, "u1")
	assert.True(t, ok)
}

func TestMemoryGuardUsersAreIndependent(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	ok, _ := g.TryAcquire(ctx, "u1")
	require.True(t, ok)

	ok, _ = g.TryAcquire(ctx, "u2")
	assert.True(t, ok)
}

func TestMemoryGuardReleaseWithoutAcquireIsSafe(t *testing.T) {
	g := NewMemoryGuard()
	g.Release(context.Background(), "u1")

	ok, _ := g.TryAcquire(context.Background(), "u1")
	assert.True(t, ok)
}

func TestMemoryGuardConcurrentAcquireGrantsOne(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.TryAcquire(ctx, "u1"); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
}
