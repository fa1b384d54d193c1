package hsAuth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/hsAuth/internal"
	"github.com/MrEthical07/hsAuth/internal/stores"
)

// RequestEmailIdentity opens a validation session for address and sends
// the numeric code through the configured EmailSender. The returned sid,
// together with clientSecret, is what the m.login.email.identity stage
// later presents.
func (e *Engine) RequestEmailIdentity(ctx context.Context, address, clientSecret string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if e.emailIdentities == nil || e.emailSender == nil {
		return "", newError(ErrcodeForbidden, "Email validation is disabled.", ErrEmailIdentityDisabled)
	}
	if strings.TrimSpace(clientSecret) == "" {
		return "", newError(ErrcodeBadJSON, "Missing client_secret.", ErrMissingField)
	}
	parsed, err := mail.ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return "", newError(ErrcodeBadJSON, "Invalid email address.", ErrMissingField)
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	code, err := internal.NewNumericCode(e.config.EmailIdentity.CodeDigits)
	if err != nil {
		return "", err
	}

	ttl := e.config.EmailIdentity.TTL
	record := &stores.EmailIdentityRecord{
		Address:          parsed.Address,
		ClientSecretHash: internal.HashSecret(clientSecret),
		CodeHash:         internal.HashSecret(code),
		ExpiresAt:        time.Now().Add(ttl).Unix(),
	}
	if err := e.emailIdentities.Save(ctx, sid.String(), record, ttl); err != nil {
		return "", e.storeFault("save email identity", err)
	}

	if err := e.emailSender.SendValidationCode(ctx, parsed.Address, sid.String(), code); err != nil {
		return "", e.storeFault("send email identity code", err)
	}

	e.metricInc(MetricEmailIdentityRequested)
	e.emitAudit(ctx, auditEventEmailIdentityReq, true, "", "", sid.String(), nil, nil)
	return sid.String(), nil
}

// ConfirmEmailIdentity marks the session validated when code matches.
// Wrong codes count toward EmailIdentity.MaxAttempts.
func (e *Engine) ConfirmEmailIdentity(ctx context.Context, sid, clientSecret, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.emailIdentities == nil {
		return newError(ErrcodeForbidden, "Email validation is disabled.", ErrEmailIdentityDisabled)
	}
	if sid == "" || clientSecret == "" || code == "" {
		return newError(ErrcodeBadJSON, "Missing sid, client_secret or token.", ErrMissingField)
	}

	_, err := e.emailIdentities.Submit(ctx, sid, internal.HashSecret(clientSecret), internal.HashSecret(code))
	if err != nil {
		var mapped error
		switch {
		case errors.Is(err, stores.ErrEmailIdentityNotFound), errors.Is(err, stores.ErrEmailIdentitySecretMismatch):
			mapped = newError(ErrcodeForbidden, "Invalid validation token.", ErrEmailIdentityInvalid)
		case errors.Is(err, stores.ErrEmailIdentityAttemptsExceeded):
			mapped = newError(ErrcodeForbidden, "Too many attempts.", ErrEmailIdentityAttempts)
		default:
			return e.storeFault("confirm email identity", err)
		}
		e.emitAudit(ctx, auditEventEmailIdentityValid, false, "", "", sid, mapped, nil)
		return mapped
	}

	e.metricInc(MetricEmailIdentityValidated)
	e.emitAudit(ctx, auditEventEmailIdentityValid, true, "", "", sid, nil, nil)
	return nil
}

// emailIdentityValidator backs the m.login.email.identity stage.
type emailIdentityValidator struct {
	engine *Engine
}

// Validated consumes the confirmed session, so each email validation
// satisfies the stage once.
func (v emailIdentityValidator) Validated(ctx context.Context, sid, clientSecret string) (bool, error) {
	if v.engine.emailIdentities == nil {
		return false, nil
	}
	_, err := v.engine.emailIdentities.Consume(ctx, sid, internal.HashSecret(clientSecret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, stores.ErrEmailIdentityNotFound),
		errors.Is(err, stores.ErrEmailIdentitySecretMismatch),
		errors.Is(err, stores.ErrEmailIdentityNotValidated):
		return false, nil
	default:
		return false, err
	}
}
