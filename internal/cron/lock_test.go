package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryRedis) LockKey(name string) string { return "aurelia:lock:" + name }

func TestRedisLockerIsPerJob(t *testing.T) {
	store := newMemoryRedis()
	locker, err := NewRedisLocker(store, 0)
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, "refund-reconcile")
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed: ok=%v err=%v", ok, err)
	}
	if store.ttls["aurelia:lock:cron:refund-reconcile"] != defaultLockTTL {
		t.Fatalf("expected default ttl on lock key, got %v", store.ttls)
	}
	if _, ok, _ := locker.Acquire(ctx, "refund-reconcile"); ok {
		t.Fatalf("expected second acquire of same job to fail")
	}
	if _, ok, _ := locker.Acquire(ctx, "auto-ship-orders"); !ok {
		t.Fatalf("expected a different job to lock independently")
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok, _ := locker.Acquire(ctx, "refund-reconcile"); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestRedisLeaseDoesNotReleaseForeignOwner(t *testing.T) {
	store := newMemoryRedis()
	locker, _ := NewRedisLocker(store, time.Minute)
	ctx := context.Background()

	lease, _, _ := locker.Acquire(ctx, "pending-returns-sweep")
	store.values["aurelia:lock:cron:pending-returns-sweep"] = "someone-else"
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := store.values["aurelia:lock:cron:pending-returns-sweep"]; !ok {
		t.Fatalf("expected foreign lock to survive")
	}
	delete(store.values, "aurelia:lock:cron:pending-returns-sweep")
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("expected missing key to be a no-op, got %v", err)
	}
}
