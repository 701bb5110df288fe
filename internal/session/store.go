package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
)

const shardCount = 16

// Store holds per-user conversation sessions in memory. Keys never contend
// across users, so the map is sharded and each shard carries its own mutex.
type Store struct {
	shards [shardCount]shard
	clock  clockwork.Clock
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func NewStore(clock clockwork.Clock) *Store {
	s := &Store{clock: clock}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*domain.Session)
	}
	return s
}

func (s *Store) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.shards[h.Sum32()%shardCount]
}

// Get returns a copy of the user's session or ErrSessionExpired when none
// exists. Callers must not rely on the copy staying current; mutations go
// through Update.
func (s *Store) Get(userID string) (domain.Session, error) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[userID]
	if !ok {
		return domain.Session{}, domain.ErrSessionExpired
	}
	return *sess, nil
}

// Create starts a fresh session for the user. An existing session is reset
// wholesale: nothing carries over between unrelated generations.
func (s *Store) Create(userID string) domain.Session {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess := &domain.Session{
		UserID:    userID,
		Step:      domain.StepAwaitingCategory,
		UpdatedAt: s.clock.Now(),
	}
	sh.sessions[userID] = sess
	return *sess
}

// Update applies the mutator to the user's session under the shard lock.
// The mutator sees the live session; returning an error leaves whatever it
// changed in place, so mutators should fail before mutating.
func (s *Store) Update(userID string, fn func(*domain.Session) error) (domain.Session, error) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[userID]
	if !ok {
		return domain.Session{}, domain.ErrSessionExpired
	}
	if err := fn(sess); err != nil {
		return domain.Session{}, err
	}
	sess.UpdatedAt = s.clock.Now()
	return *sess, nil
}

// Clear removes the user's session. Clearing an absent session is a no-op:
// stop/reset must be safe to press twice.
func (s *Store) Clear(userID string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, userID)
}

// Len reports the number of live sessions across all shards.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// RunJanitor sweeps idle sessions until ctx is cancelled. A session counts
// as idle once it has not been touched for idleTimeout.
func (s *Store) RunJanitor(ctx context.Context, idleTimeout time.Duration, logger infra.Logger) {
	interval := idleTimeout / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			removed := s.sweep(idleTimeout)
			if removed > 0 {
				logger.Debug().Int("removed", removed).Msg("session: idle sweep")
			}
		}
	}
}

func (s *Store) sweep(idleTimeout time.Duration) int {
	cutoff := s.clock.Now().Add(-idleTimeout)
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.UpdatedAt.Before(cutoff) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
