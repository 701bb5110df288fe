package session

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
)

func TestGetMissingSession(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())

	_, err := store.Get("u1")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestCreateResetsExistingSession(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())

	store.Create("u1")
	_, err := store.Update("u1", func(s *domain.Session) error {
		s.Step = domain.StepReviewReady
		s.Category = "shoes"
		s.SelectedModel = "model-3"
		return nil
	})
	require.NoError(t, err)

	sess := store.Create("u1")
	assert.Equal(t, domain.StepAwaitingCategory, sess.Step)
	assert.Empty(t, sess.Category)
	assert.Empty(t, sess.SelectedModel)
	assert.Nil(t, sess.LastResult)
}

func TestUpdateMissingSession(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())

	_, err := store.Update("u1", func(s *domain.Session) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestClearIsIdempotent(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())

	store.Create("u1")
	store.Clear("u1")
	store.Clear("u1")

	_, err := store.Get("u1")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestConcurrentAccessDistinctUsers(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			store.Create(id)
			_, _ = store.Update(id, func(s *domain.Session) error {
				s.ModelIndex++
				return nil
			})
			_, _ = store.Get(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 26, store.Len())
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(clock)

	store.Create("old")
	clock.Advance(31 * time.Minute)
	store.Create("fresh")

	removed := store.sweep(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, err := store.Get("old")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	_, err = store.Get("fresh")
	assert.NoError(t, err)
}

func TestAdvanceWraps(t *testing.T) {
	tests := []struct {
		name   string
		index  int
		delta  int
		count  int
		expect int
	}{
		{"forward", 0, 1, 5, 1},
		{"forward wrap", 4, 1, 5, 0},
		{"backward wrap", 0, -1, 5, 4},
		{"backward", 3, -1, 5, 2},
		{"zero count", 2, 1, 0, 0},
		{"single item", 0, -1, 1, 0},
		{"big negative delta", 1, -7, 5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, domain.Advance(tt.index, tt.delta, tt.count))
		})
	}
}

func TestAdvanceAlwaysInRange(t *testing.T) {
	idx := 0
	for delta := -13; delta <= 13; delta++ {
		idx = domain.Advance(idx, delta, 7)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 7)
	}
}
