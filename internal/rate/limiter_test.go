package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(rdb, cfg), mr
}

func TestLimiterLocksAfterMaxAttempts(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("unexpected initial limit: %v", err)
	}
	_ = l.IncrementLogin(ctx, "alice", "")
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("one failure must not lock: %v", err)
	}
	_ = l.IncrementLogin(ctx, "alice", "")
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("other users must not be limited: %v", err)
	}
}

func TestLimiterResetAndWindowExpiry(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice", "")
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	if err := l.ResetLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("ResetLogin failed: %v", err)
	}
	if n, _ := l.Attempts(ctx, "alice"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}

	_ = l.IncrementLogin(ctx, "alice", "")
	mr.FastForward(2 * time.Minute)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window expiry, got %v", err)
	}
}

func TestLimiterIPThrottle(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice", "10.0.0.1")
	if err := l.CheckLogin(ctx, "bob", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP limit, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", "10.0.0.2"); err != nil {
		t.Fatalf("other IP must pass: %v", err)
	}
}

func TestDisabledLimiterIsNoop(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := l.IncrementLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("disabled limiter returned %v", err)
		}
	}
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("disabled limiter returned %v", err)
	}
}

func TestLimiterArmsWindowOnFirstFailureOnly(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxLoginAttempts: 5, LoginCooldownDuration: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("IncrementLogin failed: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if err := l.IncrementLogin(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("IncrementLogin failed: %v", err)
	}

	for _, key := range []string{"hl:alice", "hli:10.0.0.1"} {
		if ttl := mr.TTL(key); ttl <= 0 || ttl > 30*time.Second {
			t.Fatalf("%s: expected window from first failure, ttl=%v", key, ttl)
		}
	}
	if n, _ := l.Attempts(ctx, "alice"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}
