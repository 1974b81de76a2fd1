package health

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Probes is the production Checker: a redis ping plus a cheap slot upstream
// call supplied by the caller.
type Probes struct {
	Redis     *redis.Client
	SlotProbe func(ctx context.Context) error
}

// PingRedis probes the session store.
func (p Probes) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}

// PingSlotUpstream probes the slot availability collaborator.
func (p Probes) PingSlotUpstream(ctx context.Context, timeout time.Duration) error {
	if p.SlotProbe == nil {
		return errors.New("slot upstream probe not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.SlotProbe(ctx)
}
