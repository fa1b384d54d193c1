package hsAuth

import (
	"errors"
	"net/http"
)

var (
	// ErrEngineNotReady is returned when an Engine method is called on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUserNotFound is returned by UserProvider implementations for unknown user ids.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidLoginToken is returned for blank, unknown or consumed login tokens.
	ErrInvalidLoginToken = errors.New("invalid login token")
	// ErrUnsupportedLoginType is returned when no login provider recognizes the request.
	ErrUnsupportedLoginType = errors.New("unsupported login type")
	// ErrLoginRateLimited is returned once the login throttle trips.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrMissingField is returned for requests missing a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrDuplicateLoginType is returned by Build when two providers claim one type.
	ErrDuplicateLoginType = errors.New("duplicate login type")
	// ErrSessionNotFound is returned when an interactive session id is unknown.
	ErrSessionNotFound = errors.New("interactive session not found")
	// ErrWrongAuthentication is wrapped into a re-prompt after a failed stage attempt.
	ErrWrongAuthentication = errors.New("wrong authentication")
	// ErrUnknownToken is returned by Authenticate for tokens with no live device.
	ErrUnknownToken = errors.New("unknown token")
	// ErrDeviceNotFound is returned by DeviceStore implementations.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrEmailIdentityDisabled is returned when the email identity stage is off.
	ErrEmailIdentityDisabled = errors.New("email identity disabled")
	// ErrEmailIdentityInvalid covers unknown sessions, wrong secrets and wrong codes.
	ErrEmailIdentityInvalid = errors.New("email identity validation invalid")
	// ErrEmailIdentityAttempts is returned once a validation session is burned.
	ErrEmailIdentityAttempts = errors.New("email identity attempts exceeded")
	// ErrStoreUnavailable wraps backend faults from Redis or SQL stores.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Errcode is the protocol error code carried in error bodies.
type Errcode string

const (
	ErrcodeForbidden     Errcode = "M_FORBIDDEN"
	ErrcodeBadJSON       Errcode = "M_BAD_JSON"
	ErrcodeNotJSON       Errcode = "M_NOT_JSON"
	ErrcodeNotFound      Errcode = "M_NOT_FOUND"
	ErrcodeMissingToken  Errcode = "M_MISSING_TOKEN"
	ErrcodeUnknownToken  Errcode = "M_UNKNOWN_TOKEN"
	ErrcodeLimitExceeded Errcode = "M_LIMIT_EXCEEDED"
	ErrcodeUnknown       Errcode = "M_UNKNOWN"
)

// Error is a failure with a user-visible kind and message. Err, when set,
// is the underlying sentinel and is never shown to clients.
type Error struct {
	Kind    Errcode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Errcode, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// InteractiveError is the interactive-auth re-prompt. It is not a failure:
// the client reads Flows to learn which stages remain.
type InteractiveError struct {
	Flows AuthenticationFlows
}

func (e *InteractiveError) Error() string {
	if e.Flows.Errcode != "" {
		return "interactive auth required: " + string(e.Flows.Errcode) + ": " + e.Flows.Error
	}
	return "interactive auth required"
}

// ErrorKind maps err to its protocol error code.
func ErrorKind(err error) Errcode {
	if err == nil {
		return ""
	}
	var ie *InteractiveError
	if errors.As(err, &ie) {
		if ie.Flows.Errcode != "" {
			return ie.Flows.Errcode
		}
		return ErrcodeForbidden
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidLoginToken),
		errors.Is(err, ErrWrongAuthentication),
		errors.Is(err, ErrEmailIdentityInvalid),
		errors.Is(err, ErrEmailIdentityAttempts):
		return ErrcodeForbidden
	case errors.Is(err, ErrUnsupportedLoginType), errors.Is(err, ErrMissingField):
		return ErrcodeBadJSON
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrDeviceNotFound):
		return ErrcodeNotFound
	case errors.Is(err, ErrUnknownToken):
		return ErrcodeUnknownToken
	case errors.Is(err, ErrLoginRateLimited):
		return ErrcodeLimitExceeded
	default:
		return ErrcodeUnknown
	}
}

// HTTPStatus returns the HTTP status code for kind.
func HTTPStatus(kind Errcode) int {
	switch kind {
	case ErrcodeForbidden:
		return http.StatusForbidden
	case ErrcodeBadJSON, ErrcodeNotJSON:
		return http.StatusBadRequest
	case ErrcodeNotFound:
		return http.StatusNotFound
	case ErrcodeMissingToken, ErrcodeUnknownToken:
		return http.StatusUnauthorized
	case ErrcodeLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
