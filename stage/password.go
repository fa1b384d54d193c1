package stage

import (
	"context"
	"crypto/subtle"
	"strings"

	"go.uber.org/zap"
)

// PasswordChecker verifies a user's password against the stored hash.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, userID, password string) (bool, error)
}

// PasswordVerifier handles m.login.password stage attempts.
type PasswordVerifier struct {
	checker PasswordChecker
	logger  *zap.Logger
}

func NewPasswordVerifier(checker PasswordChecker, logger *zap.Logger) *PasswordVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordVerifier{checker: checker, logger: logger}
}

func (v *PasswordVerifier) Stage() string             { return Password }
func (v *PasswordVerifier) Params() map[string]string { return nil }

func (v *PasswordVerifier) Authenticate(ctx context.Context, proof Proof) bool {
	if v.checker == nil || strings.TrimSpace(proof.User) == "" || proof.Password == "" {
		return false
	}

	ok, err := v.checker.CheckPassword(ctx, proof.User, proof.Password)
	if err != nil {
		v.logger.Debug("password stage check failed", zap.Error(err))
		return false
	}
	return ok
}

// SharedSecretVerifier handles m.login.token stage attempts against a
// server-configured shared secret.
type SharedSecretVerifier struct {
	secret []byte
}

func NewSharedSecretVerifier(secret string) *SharedSecretVerifier {
	return &SharedSecretVerifier{secret: []byte(secret)}
}

func (v *SharedSecretVerifier) Stage() string             { return Token }
func (v *SharedSecretVerifier) Params() map[string]string { return nil }

func (v *SharedSecretVerifier) Authenticate(_ context.Context, proof Proof) bool {
	if len(v.secret) == 0 || proof.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(proof.Token), v.secret) == 1
}
