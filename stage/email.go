package stage

import (
	"context"

	"go.uber.org/zap"
)

// ThreepidValidator reports whether a third-party id validation session
// has been confirmed by its owner.
type ThreepidValidator interface {
	Validated(ctx context.Context, sid, clientSecret string) (bool, error)
}

// EmailIdentityVerifier accepts the stage once the referenced email
// validation session has been confirmed.
type EmailIdentityVerifier struct {
	validator ThreepidValidator
	logger    *zap.Logger
}

func NewEmailIdentityVerifier(validator ThreepidValidator, logger *zap.Logger) *EmailIdentityVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailIdentityVerifier{validator: validator, logger: logger}
}

func (v *EmailIdentityVerifier) Stage() string             { return EmailIdentity }
func (v *EmailIdentityVerifier) Params() map[string]string { return nil }

func (v *EmailIdentityVerifier) Authenticate(ctx context.Context, proof Proof) bool {
	if v.validator == nil || proof.SID == "" || proof.ClientSecret == "" {
		return false
	}
	ok, err := v.validator.Validated(ctx, proof.SID, proof.ClientSecret)
	if err != nil {
		v.logger.Warn("email identity lookup failed", zap.Error(err))
		return false
	}
	return ok
}
