package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	hash, err := hasher.Hash("dummy")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("dummy", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong", hash)
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail, ok=%v err=%v", ok, err)
	}
}

func TestHashRejectsEmptyAndOversized(t *testing.T) {
	hasher, _ := NewHasher(testConfig())
	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if _, err := hasher.Hash(strings.Repeat("a", maxPassBytes+1)); err == nil {
		t.Fatal("expected error for oversized password")
	}
}

func TestVerifyBcrypt(t *testing.T) {
	hasher, _ := NewHasher(testConfig())
	legacy, err := bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	ok, err := hasher.Verify("dummy", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt verification to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = hasher.Verify("nope", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected bcrypt mismatch, ok=%v err=%v", ok, err)
	}

	rehash, err := hasher.NeedsRehash(string(legacy))
	if err != nil || !rehash {
		t.Fatal("bcrypt hashes must be flagged for rehash")
	}
}

func TestVerifyUnsupportedFormat(t *testing.T) {
	hasher, _ := NewHasher(testConfig())
	if _, err := hasher.Verify("x", "plaintext"); err != ErrUnsupportedHash {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
	if _, err := hasher.Verify("x", "$argon2id$v=19$m=1,t=1,p=1$AAAA$AAAA"); err == nil {
		t.Fatal("expected malformed argon2 hash error")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, _ := NewHasher(testConfig())
	hash, _ := weak.Hash("dummy")

	strong := testConfig()
	strong.Time = 3
	strongHasher, _ := NewHasher(strong)

	upgrade, err := strongHasher.NeedsRehash(hash)
	if err != nil || !upgrade {
		t.Fatalf("expected upgrade for weaker params, upgrade=%v err=%v", upgrade, err)
	}
	upgrade, err = weak.NeedsRehash(hash)
	if err != nil || upgrade {
		t.Fatalf("expected no upgrade for same params, upgrade=%v err=%v", upgrade, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected error for low memory")
	}
	cfg = testConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected error for short salt")
	}
}
