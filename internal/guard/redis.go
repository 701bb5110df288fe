package guard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
)

// releaseScript deletes the slot only when it still holds our lease value,
// so a Release racing a lease expiry cannot free another acquirer's slot.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// RedisGuard coordinates the video slot across orchestrator instances with
// a SETNX lease. The lease TTL outlives the video poll deadline so a live
// job is never preempted, while a crashed instance frees its users once the
// lease expires instead of locking them out until restart.
type RedisGuard struct {
	rdb    *redis.Client
	lease  time.Duration
	logger infra.Logger

	mu     sync.Mutex
	leases map[string]string
}

func NewRedisGuard(rdb *redis.Client, lease time.Duration, logger infra.Logger) *RedisGuard {
	return &RedisGuard{
		rdb:    rdb,
		lease:  lease,
		logger: logger,
		leases: make(map[string]string),
	}
}

func slotKey(userID string) string {
	return "video_slot:" + userID
}

func (g *RedisGuard) TryAcquire(ctx context.Context, userID string) (bool, error) {
	leaseID := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, slotKey(userID), leaseID, g.lease).Result()
	if err != nil {
		return false, err
	}
	if ok {
		g.mu.Lock()
		g.leases[userID] = leaseID
		g.mu.Unlock()
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, userID string) {
	g.mu.Lock()
	leaseID := g.leases[userID]
	delete(g.leases, userID)
	g.mu.Unlock()
	if leaseID == "" {
		return
	}
	if err := g.rdb.Eval(ctx, releaseScript, []string{slotKey(userID)}, leaseID).Err(); err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("guard: release failed, lease will expire")
	}
}
