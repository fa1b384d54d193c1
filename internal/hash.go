package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the hex sha256 of a bearer credential. Stores index
// credentials by this digest so raw tokens never appear in key names.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HashSecret returns the raw sha256 of a secret for constant-time
// comparison against stored digests.
func HashSecret(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}
