package internal

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// SessionID is the raw form of an interactive-auth or email validation
// session identifier. Its text form is unpadded base64url.
type SessionID [16]byte

const loginTokenBytes = 32

var sessionIDEncoding = base64.RawURLEncoding

func NewSessionID() (SessionID, error) {
	var sid SessionID
	if _, err := rand.Read(sid[:]); err != nil {
		return SessionID{}, err
	}
	return sid, nil
}

func (s SessionID) String() string {
	return sessionIDEncoding.EncodeToString(s[:])
}

// ParseSessionID rejects anything that is not exactly the text form of a
// SessionID.
func ParseSessionID(text string) (SessionID, error) {
	var sid SessionID
	if sessionIDEncoding.DecodedLen(len(text)) != len(sid) {
		return sid, fmt.Errorf("session id: want %d bytes", len(sid))
	}
	if _, err := sessionIDEncoding.Decode(sid[:], []byte(text)); err != nil {
		return SessionID{}, fmt.Errorf("session id: %w", err)
	}
	return sid, nil
}

// NewLoginToken returns an opaque single-use login token.
func NewLoginToken() (string, error) {
	buf := make([]byte, loginTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewNumericCode returns a uniformly random zero-padded decimal code of
// 6 to 10 digits.
func NewNumericCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", fmt.Errorf("code digits %d out of range [6,10]", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
