package recent

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tabs/internal/core"
)

const keyPrefix = "tabs:recent:"

// Redis keeps recent lists in Redis so they survive restarts and are
// shared between instances.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to addr and checks the connection.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Touch(ctx context.Context, viewer core.UserID, ids ...core.UserID) error {
	key := keyPrefix + string(viewer)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i := len(ids) - 1; i >= 0; i-- {
			if ids[i] == "" || ids[i] == viewer {
				continue
			}
			p.LRem(ctx, key, 0, string(ids[i]))
			p.LPush(ctx, key, string(ids[i]))
		}
		p.LTrim(ctx, key, 0, MaxPerViewer-1)
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("touch recent counterparties: %w", err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, viewer core.UserID) ([]core.UserID, error) {
	vals, err := r.rdb.LRange(ctx, keyPrefix+string(viewer), 0, MaxPerViewer-1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("list recent counterparties: %w", err)
	}
	out := make([]core.UserID, len(vals))
	for i, v := range vals {
		out[i] = core.UserID(v)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
