package hsAuth

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/hsAuth/password"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testPasswordConfig() PasswordConfig {
	return PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Server.Name = "example.org"
	cfg.Server.Secret = "test-secret"
	cfg.Password = testPasswordConfig()
	return cfg
}

func newTestHasher(t testing.TB) *password.Hasher {
	t.Helper()

	pc := testPasswordConfig()
	h, err := password.NewHasher(password.Config{
		Memory:      pc.Memory,
		Time:        pc.Time,
		Parallelism: pc.Parallelism,
		SaltLength:  pc.SaltLength,
		KeyLength:   pc.KeyLength,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

type memUserProvider struct {
	mu    sync.Mutex
	users map[string]User
	calls int
}

func newMemUserProvider(t testing.TB, creds map[string]string) *memUserProvider {
	t.Helper()

	h := newTestHasher(t)
	up := &memUserProvider{users: make(map[string]User, len(creds))}
	for id, pw := range creds {
		hash, err := h.Hash(pw)
		if err != nil {
			t.Fatalf("hash failed: %v", err)
		}
		up.users[id] = User{ID: id, PasswordHash: hash}
	}
	return up
}

func (m *memUserProvider) GetUser(_ context.Context, userID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memUserProvider) Exists(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok, nil
}

type engineOption func(*Builder)

func buildTestEngine(t testing.TB, cfg Config, up UserProvider, opts ...engineOption) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	b := New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(up)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}
