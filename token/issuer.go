package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, tampered or foreign credentials.
var ErrInvalidToken = errors.New("invalid device token")

// Config identifies the issuing server.
type Config struct {
	ServerName string
	Secret     []byte
}

// Claims are the signed contents of a device credential.
type Claims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

// Subject is the (user, device) pair a credential is bound to.
type Subject struct {
	UserID   string
	DeviceID string
}

// Issuer mints and parses device credentials.
type Issuer struct {
	serverName string
	key        []byte
	parser     *jwt.Parser
}

func NewIssuer(cfg Config) (*Issuer, error) {
	name := strings.TrimSpace(cfg.ServerName)
	if name == "" {
		return nil, errors.New("token issuer requires server name")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token issuer requires server secret")
	}

	mac := hmac.New(sha256.New, cfg.Secret)
	mac.Write([]byte("hsauth-device-token:"))
	mac.Write([]byte(name))

	return &Issuer{
		serverName: name,
		key:        mac.Sum(nil),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(name),
		),
	}, nil
}

// Mint returns the credential for (userID, deviceID).
func (i *Issuer) Mint(userID, deviceID string) (string, error) {
	if userID == "" || deviceID == "" {
		return "", errors.New("token subject requires user and device id")
	}

	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  i.serverName,
			Subject: userID,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
}

// Parse verifies a credential's signature and issuer and returns its
// subject. It does not consult the device store.
func (i *Issuer) Parse(tokenStr string) (Subject, error) {
	tok, err := i.parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	})
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.Subject == "" || claims.DeviceID == "" {
		return Subject{}, ErrInvalidToken
	}

	return Subject{UserID: claims.Subject, DeviceID: claims.DeviceID}, nil
}
