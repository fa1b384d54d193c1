package flows

import (
	"context"
	"errors"
)

// LoginUserRecord is the flow-local view of a user.
type LoginUserRecord struct {
	UserID       string
	PasswordHash string
}

type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
}

type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by login flows.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	InvalidLoginToken  error
	LoginRateLimited   error
	UserNotFound       error
}

// PasswordLoginDeps captures m.login.password dependencies.
type PasswordLoginDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(ctx context.Context, userID, ip string) error
	IncrementLoginRate func(ctx context.Context, userID, ip string) error
	ResetLoginRate     func(ctx context.Context, userID, ip string) error

	GetUser        func(ctx context.Context, userID string) (LoginUserRecord, error)
	VerifyPassword func(password, encodedHash string) (bool, error)

	Hooks   Hooks
	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunPasswordLogin verifies a user id and password pair. Unknown users and
// wrong passwords are indistinguishable to the caller; both count toward the
// throttle.
func RunPasswordLogin(ctx context.Context, userID, password string, deps PasswordLoginDeps) (string, error) {
	hooks := deps.Hooks.withDefaults()
	if deps.GetUser == nil || deps.VerifyPassword == nil {
		return "", deps.Errors.EngineNotReady
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}

	ip := deps.ClientIPFromContext(ctx)

	rateLimited := func() (string, error) {
		hooks.MetricInc(deps.Metrics.LoginRateLimited)
		hooks.EmitAudit(ctx, deps.Events.LoginRateLimited, false, userID, "", "", deps.Errors.LoginRateLimited, nil)
		return "", deps.Errors.LoginRateLimited
	}

	fail := func(reason string) (string, error) {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, userID, ip); err != nil {
				hooks.Warn("login throttle increment failed", err)
				return rateLimited()
			}
		}
		hooks.MetricInc(deps.Metrics.LoginFailure)
		hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, "", "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return "", deps.Errors.InvalidCredentials
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, userID, ip); err != nil {
			return rateLimited()
		}
	}

	if password == "" {
		return fail("empty_password")
	}

	user, err := deps.GetUser(ctx, userID)
	if err != nil {
		if deps.Errors.UserNotFound != nil && !errors.Is(err, deps.Errors.UserNotFound) {
			return "", err
		}
		return fail("user_not_found")
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		hooks.Warn("stored password hash unusable", err)
		return fail("hash_error")
	}
	if !ok {
		return fail("invalid_password")
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, userID, ip); err != nil {
			hooks.Warn("login throttle reset failed", err)
		}
	}

	return user.UserID, nil
}

// TokenLoginDeps captures m.login.token dependencies.
type TokenLoginDeps struct {
	Consume func(ctx context.Context, token string) (string, error)
	// IsNotFound reports whether a Consume error means the token is unknown.
	IsNotFound func(error) bool

	Hooks   Hooks
	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunTokenLogin consumes a single-use login token.
func RunTokenLogin(ctx context.Context, token string, deps TokenLoginDeps) (string, error) {
	hooks := deps.Hooks.withDefaults()
	if deps.Consume == nil {
		return "", deps.Errors.EngineNotReady
	}

	fail := func() (string, error) {
		hooks.MetricInc(deps.Metrics.LoginFailure)
		hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, "", "", "", deps.Errors.InvalidLoginToken, func() map[string]string {
			return map[string]string{"reason": "invalid_token"}
		})
		return "", deps.Errors.InvalidLoginToken
	}

	if token == "" {
		return fail()
	}

	userID, err := deps.Consume(ctx, token)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return fail()
		}
		return "", err
	}

	return userID, nil
}
