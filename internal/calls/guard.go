package calls

import (
	"context"
	"time"

	"levlyfy/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// SessionGuard enforces one live call per user across agent processes.
type SessionGuard interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// RedisGuard holds a per-user slot in Redis owned by this agent instance.
type RedisGuard struct {
	rdb    redis.Scripter
	prefix string
	owner  string
	ttl    time.Duration
}

func NewRedisGuard(rdb redis.Scripter, keyPrefix, owner string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, prefix: keyPrefix + "active-call:", owner: owner, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireSlot(ctx, g.rdb, g.prefix+userID, g.owner, g.ttl)
}

func (g *RedisGuard) Release(ctx context.Context, userID string) error {
	return utils.ReleaseSlot(ctx, g.rdb, g.prefix+userID, g.owner)
}
