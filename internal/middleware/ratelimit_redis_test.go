package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client, nil)
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	key := "test-redis-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	ctx := context.Background()
	defer client.Del(ctx, "ratelimit:"+key)

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, config)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if want := 4 - i; remaining != want {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, want)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, config)
	if allowed {
		t.Error("6th request should be blocked")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d when blocked, want 0", remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}
}

func TestRedisRateLimitStore_IndependentKeys(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client, nil)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	ctx := context.Background()
	key1 := "test-redis-key1-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	key2 := "test-redis-key2-" + strconv.FormatInt(time.Now().UnixNano()+1, 10)
	defer client.Del(ctx, "ratelimit:"+key1, "ratelimit:"+key2)

	allowed1, _, _ := store.Allow(ctx, key1, config)
	allowed2, _, _ := store.Allow(ctx, key2, config)
	if !allowed1 || !allowed2 {
		t.Error("both keys should be allowed their first request")
	}

	blocked1, _, _ := store.Allow(ctx, key1, config)
	blocked2, _, _ := store.Allow(ctx, key2, config)
	if blocked1 || blocked2 {
		t.Error("both keys should be blocked after reaching their limit")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client, nil)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 100 * time.Millisecond}

	ctx := context.Background()
	key := "test-redis-expiry-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(ctx, "ratelimit:"+key)

	if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("first request should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, key, config); allowed {
		t.Error("second request should be blocked")
	}

	time.Sleep(150 * time.Millisecond)

	if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:9999"})
	defer client.Close()

	store := NewRedisRateLimitStore(client, nil)
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	allowed, remaining, _ := store.Allow(context.Background(), "any-key", config)
	if !allowed {
		t.Error("should fail open when Redis is unreachable")
	}
	if remaining != config.RequestsPerWindow {
		t.Errorf("remaining = %d on error, want full quota %d", remaining, config.RequestsPerWindow)
	}
}
