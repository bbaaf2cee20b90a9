package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestFetchPopulatesAndServesFromRedis(t *testing.T) {
	cache := newTestCache(t)
	calls := 0
	loader := func(context.Context) (PermissionMap, error) {
		calls++
		return PermissionMap{"operations": {ActionRead, ActionCreate}}, nil
	}

	for i := 0; i < 3; i++ {
		m, err := cache.Fetch(context.Background(), "u1", loader)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if !m.Has("operations", ActionCreate) {
			t.Fatalf("fetch %d lost the map: %v", i, m)
		}
	}
	if calls != 1 {
		t.Fatalf("loader must run once for a warm key, ran %d times", calls)
	}
}

func TestFetchLoadOutlivesCallerCancellation(t *testing.T) {
	cache := newTestCache(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	loader := func(loadCtx context.Context) (PermissionMap, error) {
		calls++
		// The caller goes away mid-load; the load itself must finish
		// so collapsed followers and the cache are not poisoned.
		cancel()
		if err := loadCtx.Err(); err != nil {
			return nil, err
		}
		return PermissionMap{"reports": {ActionRead}}, nil
	}

	if _, err := cache.Fetch(ctx, "u2", loader); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected leader error: %v", err)
	}

	m, err := cache.Fetch(context.Background(), "u2", loader)
	if err != nil {
		t.Fatalf("fetch after populate: %v", err)
	}
	if calls != 1 {
		t.Fatalf("map must be served from redis, loader ran %d times", calls)
	}
	if !m.Has("reports", ActionRead) {
		t.Fatalf("cached map lost: %v", m)
	}
}

func TestInvalidateDropsCachedMap(t *testing.T) {
	cache := newTestCache(t)
	calls := 0
	loader := func(context.Context) (PermissionMap, error) {
		calls++
		return PermissionMap{"budgets": {ActionRead}}, nil
	}

	if _, err := cache.Fetch(context.Background(), "u3", loader); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := cache.Invalidate(context.Background(), "u3"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.Fetch(context.Background(), "u3", loader); err != nil {
		t.Fatalf("fetch after invalidate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("invalidate must force a reload, loader ran %d times", calls)
	}
}
