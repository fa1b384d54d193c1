package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnsupportedHash is returned for hashes in an unknown format.
var ErrUnsupportedHash = errors.New("unsupported password hash format")

// Hasher hashes new passwords with argon2id and verifies both argon2id
// PHC strings and bcrypt hashes imported from older deployments.
type Hasher struct {
	argon *Argon2
}

func NewHasher(cfg Config) (*Hasher, error) {
	argon, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: argon}, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify dispatches on the hash prefix.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return h.argon.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsRehash reports whether encodedHash should be replaced by a fresh
// argon2id hash: bcrypt hashes always do.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	return h.argon.NeedsUpgrade(encodedHash)
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
