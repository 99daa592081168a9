package api

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return m, client
}

func TestRedisDeduperAddTwice(t *testing.T) {
	_, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	added, err := deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !added {
		t.Fatal("expected key to be added")
	}

	added, err = deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatal("expected duplicate on second add")
	}

	added, err = deduper.Add(ctx, "other-user", "k1")
	if err != nil {
		t.Fatalf("add for other user: %v", err)
	}
	if !added {
		t.Fatal("keys must be scoped per user")
	}
}

func TestRedisDeduperKeyNamespacing(t *testing.T) {
	m, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "user", "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	const expectedKey = "taskflow:idem:user:k1"
	if !m.Exists(expectedKey) {
		t.Fatalf("expected redis key %q to exist", expectedKey)
	}
	if ttl := m.TTL(expectedKey); ttl != time.Minute {
		t.Fatalf("unexpected ttl: %v", ttl)
	}
}

func TestRedisDeduperRemoveAllowsRetry(t *testing.T) {
	m, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "user", "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := deduper.Remove(ctx, "user", "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if m.Exists("taskflow:idem:user:k1") {
		t.Fatal("expected key to be removed")
	}
	added, err := deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if !added {
		t.Fatal("expected key to be added again after remove")
	}
}

func TestRedisDeduperExpires(t *testing.T) {
	m, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "user", "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	m.FastForward(2 * time.Minute)
	added, err := deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("add after expiry: %v", err)
	}
	if !added {
		t.Fatal("expected key to be accepted after ttl")
	}
}
