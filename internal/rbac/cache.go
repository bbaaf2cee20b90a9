package rbac

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "rbac:map:"

// Cache keeps flattened permission maps in Redis. Concurrent loads of the
// same user are collapsed through singleflight so a cold key produces a
// single database round-trip. A nil client degrades to loader passthrough.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Fetch loads the cached map for a user or populates it via loader.
func (c *Cache) Fetch(ctx context.Context, userID string, loader func(context.Context) (PermissionMap, error)) (PermissionMap, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := cacheKeyPrefix + userID
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var m PermissionMap
		if err := json.Unmarshal(payload, &m); err == nil {
			return m, nil
		}
		// Corrupt entry, fall through and rebuild.
	} else if err != redis.Nil {
		return nil, err
	}

	// The flight outlives the caller that started it: followers
	// collapsed onto it must not inherit the leader's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		m, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return m, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(PermissionMap), nil
	}
}

// Invalidate drops the cached maps of the given users.
func (c *Cache) Invalidate(ctx context.Context, userIDs ...string) error {
	if c == nil || c.client == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cacheKeyPrefix + id
	}
	return c.client.Del(ctx, keys...).Err()
}
