package stores

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
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
	return mr, rdb
}

func TestLoginTokenSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewLoginTokenStore(rdb, "lt")
	ctx := context.Background()

	if err := store.Save(ctx, "tok", "dummy", time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	user, err := store.Consume(ctx, "tok")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if user != "dummy" {
		t.Fatalf("expected dummy, got %q", user)
	}

	if _, err := store.Consume(ctx, "tok"); !errors.Is(err, ErrLoginTokenNotFound) {
		t.Fatalf("expected ErrLoginTokenNotFound on reuse, got %v", err)
	}
	if _, err := store.Consume(ctx, ""); !errors.Is(err, ErrLoginTokenNotFound) {
		t.Fatalf("expected ErrLoginTokenNotFound for blank token, got %v", err)
	}
}

func TestLoginTokenExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewLoginTokenStore(rdb, "lt")
	ctx := context.Background()

	_ = store.Save(ctx, "tok", "dummy", time.Minute)
	mr.FastForward(2 * time.Minute)
	if _, err := store.Consume(ctx, "tok"); !errors.Is(err, ErrLoginTokenNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func seedEmailIdentity(t *testing.T, store *EmailIdentityStore, sid, secret, code string) {
	t.Helper()
	record := &EmailIdentityRecord{
		Address:          "dummy@example.org",
		ClientSecretHash: sha256.Sum256([]byte(secret)),
		CodeHash:         sha256.Sum256([]byte(code)),
		ExpiresAt:        time.Now().Add(time.Hour).Unix(),
	}
	if err := store.Save(context.Background(), sid, record, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func TestEmailIdentitySubmitAndGet(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewEmailIdentityStore(rdb, "eid", 3)
	ctx := context.Background()
	seedEmailIdentity(t, store, "sid1", "cs", "123456")

	before, err := store.Get(ctx, "sid1", sha256.Sum256([]byte("cs")))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if before.Validated {
		t.Fatal("fresh session must not be validated")
	}

	rec, err := store.Submit(ctx, "sid1", sha256.Sum256([]byte("cs")), sha256.Sum256([]byte("123456")))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !rec.Validated || rec.Address != "dummy@example.org" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	after, err := store.Get(ctx, "sid1", sha256.Sum256([]byte("cs")))
	if err != nil {
		t.Fatalf("Get after submit failed: %v", err)
	}
	if !after.Validated {
		t.Fatal("validated flag must persist")
	}

	if _, err := store.Get(ctx, "sid1", sha256.Sum256([]byte("other"))); !errors.Is(err, ErrEmailIdentitySecretMismatch) {
		t.Fatalf("expected secret mismatch, got %v", err)
	}
}

func TestEmailIdentityConsumeOnce(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewEmailIdentityStore(rdb, "eid", 3)
	ctx := context.Background()
	seedEmailIdentity(t, store, "sid1", "cs", "123456")
	secret := sha256.Sum256([]byte("cs"))

	if _, err := store.Consume(ctx, "sid1", secret); !errors.Is(err, ErrEmailIdentityNotValidated) {
		t.Fatalf("expected not validated before submit, got %v", err)
	}
	if _, err := store.Submit(ctx, "sid1", secret, sha256.Sum256([]byte("123456"))); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := store.Consume(ctx, "sid1", sha256.Sum256([]byte("other"))); !errors.Is(err, ErrEmailIdentitySecretMismatch) {
		t.Fatalf("expected secret mismatch, got %v", err)
	}

	rec, err := store.Consume(ctx, "sid1", secret)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !rec.Validated || rec.Address != "dummy@example.org" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := store.Consume(ctx, "sid1", secret); !errors.Is(err, ErrEmailIdentityNotFound) {
		t.Fatalf("expected second consume to miss, got %v", err)
	}
}

func TestEmailIdentityAttemptsExceeded(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewEmailIdentityStore(rdb, "eid", 2)
	ctx := context.Background()
	seedEmailIdentity(t, store, "sid1", "cs", "123456")

	wrong := sha256.Sum256([]byte("000000"))
	if _, err := store.Submit(ctx, "sid1", sha256.Sum256([]byte("cs")), wrong); !errors.Is(err, ErrEmailIdentitySecretMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := store.Submit(ctx, "sid1", sha256.Sum256([]byte("cs")), wrong); !errors.Is(err, ErrEmailIdentityAttemptsExceeded) {
		t.Fatalf("expected attempts exceeded, got %v", err)
	}
	if _, err := store.Submit(ctx, "sid1", sha256.Sum256([]byte("cs")), sha256.Sum256([]byte("123456"))); !errors.Is(err, ErrEmailIdentityNotFound) {
		t.Fatalf("expected session deleted, got %v", err)
	}
}

func TestEmailIdentityWrongClientSecretDoesNotCountAttempt(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewEmailIdentityStore(rdb, "eid", 1)
	ctx := context.Background()
	seedEmailIdentity(t, store, "sid1", "cs", "123456")

	if _, err := store.Submit(ctx, "sid1", sha256.Sum256([]byte("nope")), sha256.Sum256([]byte("123456"))); !errors.Is(err, ErrEmailIdentitySecretMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := store.Submit(ctx, "sid1", sha256.Sum256([]byte("cs")), sha256.Sum256([]byte("123456"))); err != nil {
		t.Fatalf("correct submit after foreign secret failed: %v", err)
	}
}
