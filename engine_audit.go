package hsAuth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventLogout             = "logout"
	auditEventDeviceRevoked      = "device_revoked"
	auditEventUIASessionCreated  = "uia_session_created"
	auditEventUIAStageCompleted  = "uia_stage_completed"
	auditEventUIAStageFailed     = "uia_stage_failed"
	auditEventUIASatisfied       = "uia_satisfied"
	auditEventLoginTokenIssued   = "login_token_issued"
	auditEventEmailIdentityReq   = "email_identity_requested"
	auditEventEmailIdentityValid = "email_identity_validated"
)

// AuditErrorCode is the stable, non-sensitive error label stored on audit
// events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrWrongAuth          AuditErrorCode = "wrong_authentication"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditErrorCodes maps engine errors to their audit label. The first
// match wins; anything unlisted is internal_error.
var auditErrorCodes = []struct {
	err  error
	code AuditErrorCode
}{
	{ErrInvalidCredentials, auditErrInvalidCredentials},
	{ErrUserNotFound, auditErrInvalidCredentials},
	{ErrInvalidLoginToken, auditErrInvalidToken},
	{ErrUnknownToken, auditErrInvalidToken},
	{ErrEmailIdentityInvalid, auditErrInvalidToken},
	{ErrLoginRateLimited, auditErrRateLimited},
	{ErrSessionNotFound, auditErrSessionNotFound},
	{ErrWrongAuthentication, auditErrWrongAuth},
	{ErrEmailIdentityAttempts, auditErrAttemptsExceeded},
	{ErrStoreUnavailable, auditErrUnavailable},
}

// emitAudit queues one event. metadata is only evaluated when auditing is
// on, so callers can build maps lazily.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID, deviceID, sessionID string,
	err error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	ev := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		DeviceID:  deviceID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     string(auditErrorCode(err)),
	}
	if metadata != nil {
		ev.Metadata = metadata()
	}
	e.audit.Emit(ctx, ev)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, entry := range auditErrorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return auditErrInternal
}
