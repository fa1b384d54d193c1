package hsAuth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/hsAuth/device"
	"github.com/MrEthical07/hsAuth/interactive"
	internalaudit "github.com/MrEthical07/hsAuth/internal/audit"
	"github.com/MrEthical07/hsAuth/internal/rate"
	"github.com/MrEthical07/hsAuth/internal/stores"
	"github.com/MrEthical07/hsAuth/password"
	"github.com/MrEthical07/hsAuth/stage"
	"github.com/MrEthical07/hsAuth/token"
)

// Builder assembles an Engine. Configure it once during startup, call Build,
// and discard it; a Builder cannot be reused.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	deviceStore  DeviceStore
	emailSender  EmailSender
	auditSink    AuditSink
	logger       *zap.Logger
	httpClient   *http.Client

	loginProviders []LoginProvider
	verifiers      []stage.Verifier

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing interactive sessions, login tokens,
// email validation sessions, the login throttle and, unless WithDeviceStore
// is used, devices.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithDeviceStore replaces the Redis device store, e.g. with sqlstore.
func (b *Builder) WithDeviceStore(ds DeviceStore) *Builder {
	b.deviceStore = ds
	return b
}

func (b *Builder) WithEmailSender(s EmailSender) *Builder {
	b.emailSender = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithHTTPClient sets the client used by the CAPTCHA and OAuth2 stages.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLoginProvider appends p after the built-in password and token
// providers. Providers are tried in registration order.
func (b *Builder) WithLoginProvider(p LoginProvider) *Builder {
	b.loginProviders = append(b.loginProviders, p)
	return b
}

// WithStageVerifier registers an additional interactive-auth stage.
func (b *Builder) WithStageVerifier(v stage.Verifier) *Builder {
	b.verifiers = append(b.verifiers, v)
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, registers every enabled stage and
// resolves the configured flows. A flow naming a stage that is not
// registered is a build error.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		userProvider: b.userProvider,
		emailSender:  b.emailSender,
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	issuer, err := token.NewIssuer(token.Config{
		ServerName: cfg.Server.Name,
		Secret:     []byte(cfg.Server.Secret),
	})
	if err != nil {
		return nil, err
	}
	engine.issuer = issuer

	// -------- STORES --------
	engine.deviceStore = b.deviceStore
	if engine.deviceStore == nil {
		engine.deviceStore = device.NewStore(b.redis, cfg.Device.RedisPrefix)
	}
	engine.sessionStore = interactive.NewStore(b.redis, cfg.Interactive.RedisPrefix)
	engine.loginTokens = stores.NewLoginTokenStore(b.redis, cfg.LoginToken.RedisPrefix)
	if cfg.Stages.EmailIdentity.Enabled {
		engine.emailIdentities = stores.NewEmailIdentityStore(b.redis, cfg.EmailIdentity.RedisPrefix, cfg.EmailIdentity.MaxAttempts)
	}
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
	})

	// -------- STAGE REGISTRY --------
	registry, err := b.buildRegistry(cfg, engine, logger)
	if err != nil {
		return nil, err
	}
	flowSet, err := registry.ResolveFlows(cfg.Flows)
	if err != nil {
		return nil, err
	}
	engine.registry = registry
	engine.flowSet = flowSet
	engine.flowStages = stage.FlowStages(flowSet)
	engine.params = registry.Params(flowSet)

	// -------- LOGIN PROVIDERS --------
	providers := []LoginProvider{
		&passwordLoginProvider{engine: engine},
		&tokenLoginProvider{engine: engine},
	}
	providers = append(providers, b.loginProviders...)
	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("nil login provider")
		}
		if _, dup := seen[p.Type()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLoginType, p.Type())
		}
		seen[p.Type()] = struct{}{}
	}
	engine.loginProviders = providers

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     logger,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.initFlows()

	logger.Info("hsauth engine built",
		zap.String("server_name", cfg.Server.Name),
		zap.Strings("stages", registry.Stages()),
		zap.Int("flows", len(flowSet)),
		zap.Int("login_providers", len(providers)),
	)

	b.built = true

	return engine, nil
}

func (b *Builder) buildRegistry(cfg Config, engine *Engine, logger *zap.Logger) (*stage.Registry, error) {
	registry := stage.NewRegistry()

	register := func(v stage.Verifier) error {
		if err := registry.Register(v); err != nil {
			return fmt.Errorf("register stage %q: %w", v.Stage(), err)
		}
		return nil
	}

	st := cfg.Stages
	if st.Password.Enabled {
		if err := register(stage.NewPasswordVerifier(engine, logger)); err != nil {
			return nil, err
		}
	}
	if st.Token.Enabled {
		if err := register(stage.NewSharedSecretVerifier(st.Token.SharedSecret)); err != nil {
			return nil, err
		}
	}
	if st.Recaptcha.Enabled {
		v, err := stage.NewCaptchaVerifier(stage.CaptchaConfig{
			PublicKey:     st.Recaptcha.PublicKey,
			SecretKey:     st.Recaptcha.SecretKey,
			VerifyURL:     st.Recaptcha.VerifyURL,
			Timeout:       st.Recaptcha.Timeout,
			RatePerSecond: st.Recaptcha.RatePerSecond,
			Burst:         st.Recaptcha.Burst,
		}, b.httpClient, logger)
		if err != nil {
			return nil, err
		}
		if err := register(v); err != nil {
			return nil, err
		}
	}
	if st.OAuth2.Enabled {
		v, err := stage.NewOAuth2Verifier(stage.OAuth2Config{
			ClientID:     st.OAuth2.ClientID,
			ClientSecret: st.OAuth2.ClientSecret,
			AuthURL:      st.OAuth2.AuthURL,
			TokenURL:     st.OAuth2.TokenURL,
			RedirectURL:  st.OAuth2.RedirectURL,
			Scopes:       st.OAuth2.Scopes,
			Timeout:      st.OAuth2.Timeout,
		}, b.httpClient, logger)
		if err != nil {
			return nil, err
		}
		if err := register(v); err != nil {
			return nil, err
		}
	}
	if st.EmailIdentity.Enabled {
		if err := register(stage.NewEmailIdentityVerifier(emailIdentityValidator{engine: engine}, logger)); err != nil {
			return nil, err
		}
	}
	if st.Dummy.Enabled {
		if err := register(stage.DummyVerifier{}); err != nil {
			return nil, err
		}
	}

	for _, v := range b.verifiers {
		if v == nil {
			return nil, errors.New("nil stage verifier")
		}
		if err := register(v); err != nil {
			return nil, err
		}
	}

	registry.Freeze()
	return registry, nil
}
