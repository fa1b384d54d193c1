package hsAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/hsAuth/device"
	"github.com/MrEthical07/hsAuth/interactive"
	internalaudit "github.com/MrEthical07/hsAuth/internal/audit"
	internalflows "github.com/MrEthical07/hsAuth/internal/flows"
	"github.com/MrEthical07/hsAuth/internal/rate"
	"github.com/MrEthical07/hsAuth/internal/stores"
	"github.com/MrEthical07/hsAuth/password"
	"github.com/MrEthical07/hsAuth/stage"
	"github.com/MrEthical07/hsAuth/token"
)

// Engine is the authentication kernel: interactive-auth sessions, login
// providers, device credentials and bearer token resolution. An Engine is
// immutable after Build and safe for concurrent use.
type Engine struct {
	config Config
	logger *zap.Logger

	registry   *stage.Registry
	flowSet    []stage.Flow
	flowStages [][]string
	params     map[string]map[string]string

	loginProviders []LoginProvider

	userProvider    UserProvider
	deviceStore     DeviceStore
	emailSender     EmailSender
	sessionStore    *interactive.Store
	loginTokens     *stores.LoginTokenStore
	emailIdentities *stores.EmailIdentityStore
	rateLimiter     *rate.Limiter

	hasher *password.Hasher
	issuer *token.Issuer

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	flows   internalflows.Service
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:    map[MetricID]uint64{},
			Histograms:  map[MetricID][]uint64{},
			LatencySums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

// Logger returns the engine's logger. It is never nil on a built engine.
func (e *Engine) Logger() *zap.Logger {
	if e == nil || e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// ServerName is the homeserver name stamped into login responses.
func (e *Engine) ServerName() string {
	return e.config.Server.Name
}

// UpdateLastSeen reports whether the request gate should record device
// last-seen data.
func (e *Engine) UpdateLastSeen() bool {
	return e != nil && e.config.Device.UpdateLastSeen
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) initFlows() {
	hooks := internalflows.Hooks{
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn: func(msg string, err error) {
			e.logger.Warn(msg, zap.Error(err))
		},
	}
	loginMetrics := internalflows.LoginMetrics{
		LoginSuccess:     int(MetricLoginSuccess),
		LoginFailure:     int(MetricLoginFailure),
		LoginRateLimited: int(MetricLoginRateLimited),
	}
	loginEvents := internalflows.LoginEvents{
		LoginSuccess:     auditEventLoginSuccess,
		LoginFailure:     auditEventLoginFailure,
		LoginRateLimited: auditEventLoginRateLimited,
	}
	loginErrors := internalflows.LoginErrors{
		EngineNotReady:     ErrEngineNotReady,
		InvalidCredentials: ErrInvalidCredentials,
		InvalidLoginToken:  ErrInvalidLoginToken,
		LoginRateLimited:   ErrLoginRateLimited,
		UserNotFound:       ErrUserNotFound,
	}
	deviceNotFound := internalflows.IsNotFoundAny(ErrDeviceNotFound, device.ErrNotFound)

	e.flows = internalflows.New(internalflows.Deps{
		Interactive: internalflows.InteractiveDeps{
			Store:      e.sessionStore,
			SessionTTL: e.config.Interactive.SessionTTL,
			Flows:      e.flowStages,
			Lookup:     e.registry.Lookup,
			Hooks:      hooks,
			Metrics: internalflows.InteractiveMetrics{
				SessionCreated: int(MetricUIASessionCreated),
				StageSuccess:   int(MetricUIAStageSuccess),
				StageFailure:   int(MetricUIAStageFailure),
				Satisfied:      int(MetricUIASatisfied),
			},
			Events: internalflows.InteractiveEvents{
				SessionCreated: auditEventUIASessionCreated,
				StageCompleted: auditEventUIAStageCompleted,
				StageFailed:    auditEventUIAStageFailed,
				Satisfied:      auditEventUIASatisfied,
			},
		},
		PasswordLogin: internalflows.PasswordLoginDeps{
			ClientIPFromContext: clientIPFromContext,
			CheckLoginRate:      e.rateLimiter.CheckLogin,
			IncrementLoginRate:  e.rateLimiter.IncrementLogin,
			ResetLoginRate:      e.rateLimiter.ResetLogin,
			GetUser: func(ctx context.Context, userID string) (internalflows.LoginUserRecord, error) {
				u, err := e.userProvider.GetUser(ctx, userID)
				if err != nil {
					return internalflows.LoginUserRecord{}, err
				}
				return internalflows.LoginUserRecord{UserID: u.ID, PasswordHash: u.PasswordHash}, nil
			},
			VerifyPassword: e.hasher.Verify,
			Hooks:          hooks,
			Metrics:        loginMetrics,
			Events:         loginEvents,
			Errors:         loginErrors,
		},
		TokenLogin: internalflows.TokenLoginDeps{
			Consume:    e.loginTokens.Consume,
			IsNotFound: internalflows.IsNotFoundAny(stores.ErrLoginTokenNotFound),
			Hooks:      hooks,
			Metrics:    loginMetrics,
			Events:     loginEvents,
			Errors:     loginErrors,
		},
		Device: internalflows.DeviceDeps{
			Store: e.deviceStore,
			Mint:  e.issuer.Mint,
			Parse: e.issuer.Parse,
			NewID: device.NewDeviceID,
			Now:   time.Now,
			Observe: func(id int, d time.Duration) {
				if e.metrics != nil {
					e.metrics.Observe(MetricID(id), d)
				}
			},
			IsNotFound: deviceNotFound,
			Hooks:      hooks,
			Metrics: internalflows.DeviceMetrics{
				DeviceMinted:        int(MetricDeviceMinted),
				AuthenticateHit:     int(MetricAuthenticateHit),
				AuthenticateMiss:    int(MetricAuthenticateMiss),
				AuthenticateLatency: int(MetricAuthenticateLatency),
			},
			Errors: internalflows.DeviceErrors{
				UnknownToken:   ErrUnknownToken,
				DeviceNotFound: ErrDeviceNotFound,
			},
		},
		Logout: internalflows.LogoutDeps{
			Store:      e.deviceStore,
			IsNotFound: deviceNotFound,
			Hooks:      hooks,
			Metrics: internalflows.LogoutMetrics{
				Logout:        int(MetricLogout),
				DeviceRevoked: int(MetricDeviceRevoked),
			},
			Events: internalflows.LogoutEvents{
				Logout:        auditEventLogout,
				DeviceRevoked: auditEventDeviceRevoked,
			},
		},
	})
}

// CheckPassword verifies password against the stored hash of userID. It
// backs the m.login.password interactive stage and shares the failed-login
// throttle with Login, keyed by user and the context's client IP.
func (e *Engine) CheckPassword(ctx context.Context, userID, password string) (bool, error) {
	ip := clientIPFromContext(ctx)
	if err := e.rateLimiter.CheckLogin(ctx, userID, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			return false, ErrLoginRateLimited
		}
		return false, err
	}

	ok, err := e.verifyStoredPassword(ctx, userID, password)
	if err != nil {
		return false, err
	}
	if !ok {
		if err := e.rateLimiter.IncrementLogin(ctx, userID, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.Warn("login throttle increment failed", zap.Error(err))
		}
		return false, nil
	}
	if err := e.rateLimiter.ResetLogin(ctx, userID, ip); err != nil {
		e.logger.Warn("login throttle reset failed", zap.Error(err))
	}
	return true, nil
}

func (e *Engine) verifyStoredPassword(ctx context.Context, userID, password string) (bool, error) {
	u, err := e.userProvider.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	ok, err := e.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		e.logger.Warn("stored password hash unusable", zap.String("user_id", userID), zap.Error(err))
		return false, nil
	}
	return ok, nil
}

// storeFault logs err and wraps it so callers see ErrStoreUnavailable
// without backend detail.
func (e *Engine) storeFault(op string, err error) error {
	e.logger.Error("credential store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
