package hsAuth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/hsAuth/internal"
	internalflows "github.com/MrEthical07/hsAuth/internal/flows"
	"github.com/MrEthical07/hsAuth/internal/stores"
	"github.com/MrEthical07/hsAuth/stage"
)

// LoginProvider performs one single-shot login variant. Recognizes must be
// cheap and side-effect free; Login does the full credential check.
type LoginProvider interface {
	Type() string
	Recognizes(req LoginRequest) bool
	Login(ctx context.Context, req LoginRequest) (User, error)
}

type passwordLoginProvider struct {
	engine *Engine
}

func (p *passwordLoginProvider) Type() string { return stage.Password }

func (p *passwordLoginProvider) Recognizes(req LoginRequest) bool {
	return req.Type == stage.Password
}

func (p *passwordLoginProvider) Login(ctx context.Context, req LoginRequest) (User, error) {
	userID := strings.TrimSpace(req.User)
	if userID == "" {
		return User{}, newError(ErrcodeBadJSON, "Missing user.", ErrMissingField)
	}
	id, err := p.engine.flows.PasswordLogin(ctx, userID, req.Password)
	if err != nil {
		return User{}, err
	}
	return User{ID: id}, nil
}

type tokenLoginProvider struct {
	engine *Engine
}

func (p *tokenLoginProvider) Type() string { return stage.Token }

func (p *tokenLoginProvider) Recognizes(req LoginRequest) bool {
	return req.Type == stage.Token
}

func (p *tokenLoginProvider) Login(ctx context.Context, req LoginRequest) (User, error) {
	id, err := p.engine.flows.TokenLogin(ctx, req.Token)
	if err != nil {
		return User{}, err
	}
	return User{ID: id}, nil
}

// LoginTypes lists the registered login provider types in try order.
func (e *Engine) LoginTypes() []string {
	out := make([]string, 0, len(e.loginProviders))
	for _, p := range e.loginProviders {
		out = append(out, p.Type())
	}
	return out
}

// Login runs req through the provider chain. The first provider that
// recognizes req decides the outcome; on success a device credential is
// minted for the returned user.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	for _, p := range e.loginProviders {
		if !p.Recognizes(req) {
			continue
		}

		user, err := p.Login(ctx, req)
		if err != nil {
			return nil, e.mapLoginError(err)
		}
		if user.ID == "" {
			return nil, newError(ErrcodeForbidden, "Invalid login.", ErrInvalidCredentials)
		}

		d, err := e.flows.MintDevice(ctx, internalflows.MintDeviceInput{
			UserID:      user.ID,
			DeviceID:    strings.TrimSpace(req.DeviceID),
			DisplayName: req.InitialDeviceDisplayName,
			RemoteAddr:  clientIPFromContext(ctx),
		})
		if err != nil {
			return nil, e.storeFault("mint device", err)
		}

		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, d.DeviceID, "", nil, func() map[string]string {
			return map[string]string{"type": p.Type()}
		})

		return &LoginResponse{
			UserID:      user.ID,
			HomeServer:  e.config.Server.Name,
			DeviceID:    d.DeviceID,
			AccessToken: d.Token,
		}, nil
	}

	return nil, newError(ErrcodeBadJSON, "Bad login type.", ErrUnsupportedLoginType)
}

func (e *Engine) mapLoginError(err error) error {
	var herr *Error
	if errors.As(err, &herr) {
		return herr
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserNotFound):
		return newError(ErrcodeForbidden, "Invalid login or password.", ErrInvalidCredentials)
	case errors.Is(err, ErrInvalidLoginToken):
		return newError(ErrcodeForbidden, "Invalid token.", ErrInvalidLoginToken)
	case errors.Is(err, ErrLoginRateLimited):
		return newError(ErrcodeLimitExceeded, "Too many failed login attempts.", ErrLoginRateLimited)
	default:
		return e.storeFault("login", err)
	}
}

// Logout revokes the credential of the calling device. Logging out an
// already revoked device succeeds.
func (e *Engine) Logout(ctx context.Context, id Identity) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if id.Token == "" {
		return newError(ErrcodeMissingToken, "Missing access token.", ErrUnknownToken)
	}
	if err := e.flows.Logout(ctx, id.UserID, id.DeviceID, id.Token); err != nil {
		return e.storeFault("logout", err)
	}
	return nil
}

// IssueLoginToken mints a single-use m.login.token credential for userID,
// valid for LoginToken.TTL.
func (e *Engine) IssueLoginToken(ctx context.Context, userID string) (string, error) {
	if e == nil || e.loginTokens == nil {
		return "", ErrEngineNotReady
	}
	exists, err := e.userProvider.Exists(ctx, userID)
	if err != nil {
		return "", e.storeFault("issue login token", err)
	}
	if !exists {
		return "", newError(ErrcodeNotFound, "Unknown user.", ErrUserNotFound)
	}

	tok, err := internal.NewLoginToken()
	if err != nil {
		return "", err
	}
	if err := e.loginTokens.Save(ctx, tok, userID, e.config.LoginToken.TTL); err != nil {
		if errors.Is(err, stores.ErrLoginTokenRedisUnavailable) {
			return "", e.storeFault("issue login token", err)
		}
		return "", err
	}

	e.metricInc(MetricLoginTokenIssued)
	e.emitAudit(ctx, auditEventLoginTokenIssued, true, userID, "", "", nil, nil)
	e.logger.Debug("login token issued", zap.String("user_id", userID))
	return tok, nil
}
