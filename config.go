package hsAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/hsAuth/stage"
)

// Config holds every tunable of the Engine. Obtain defaults with
// DefaultConfig and override fields before passing it to Builder.WithConfig.
type Config struct {
	Server        ServerConfig
	Stages        StagesConfig
	Flows         [][]string
	Interactive   InteractiveConfig
	Device        DeviceConfig
	LoginToken    LoginTokenConfig
	EmailIdentity EmailIdentityConfig
	Password      PasswordConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig identifies this homeserver. Secret keys device credentials;
// rotating it invalidates nothing stored but changes every newly minted token.
type ServerConfig struct {
	Name   string
	Secret string
}

/*
====================================
STAGE CONFIG
====================================
*/

// StagesConfig enables individual interactive-auth stages.
type StagesConfig struct {
	Password      StageToggle
	Recaptcha     RecaptchaStageConfig
	Token         TokenStageConfig
	OAuth2        OAuth2StageConfig
	EmailIdentity StageToggle
	Dummy         StageToggle
}

type StageToggle struct {
	Enabled bool
}

type TokenStageConfig struct {
	Enabled      bool
	SharedSecret string
}

type RecaptchaStageConfig struct {
	Enabled       bool
	PublicKey     string
	SecretKey     string
	VerifyURL     string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

type OAuth2StageConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration
}

/*
====================================
SESSION AND DEVICE CONFIG
====================================
*/

type InteractiveConfig struct {
	RedisPrefix string
	SessionTTL  time.Duration
}

// DeviceConfig controls the device store and the request gate.
type DeviceConfig struct {
	RedisPrefix    string
	UpdateLastSeen bool
}

type LoginTokenConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

type EmailIdentityConfig struct {
	RedisPrefix string
	TTL         time.Duration
	MaxAttempts int
	CodeDigits  int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

/*
====================================
AUDIT AND METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration: dummy-only flow,
// 30 minute interactive sessions, last-seen tracking on.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:   "localhost",
			Secret: "macaroon_seed",
		},
		Stages: StagesConfig{
			Password: StageToggle{Enabled: true},
			Dummy:    StageToggle{Enabled: true},
			Recaptcha: RecaptchaStageConfig{
				VerifyURL: stage.DefaultCaptchaVerifyURL,
				Timeout:   5 * time.Second,
			},
			OAuth2: OAuth2StageConfig{
				Timeout: 5 * time.Second,
			},
		},
		Flows: [][]string{{stage.Dummy}},
		Interactive: InteractiveConfig{
			RedisPrefix: "uia",
			SessionTTL:  30 * time.Minute,
		},
		Device: DeviceConfig{
			RedisPrefix:    "dev",
			UpdateLastSeen: true,
		},
		LoginToken: LoginTokenConfig{
			RedisPrefix: "lt",
			TTL:         2 * time.Minute,
		},
		EmailIdentity: EmailIdentityConfig{
			RedisPrefix: "eid",
			TTL:         15 * time.Minute,
			MaxAttempts: 5,
			CodeDigits:  6,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Flows = cloneFlows(cfg.Flows)
	if cfg.Stages.OAuth2.Scopes != nil {
		out.Stages.OAuth2.Scopes = append([]string(nil), cfg.Stages.OAuth2.Scopes...)
	}
	return out
}

func cloneFlows(flows [][]string) [][]string {
	if flows == nil {
		return nil
	}
	out := make([][]string, len(flows))
	for i, f := range flows {
		out[i] = append([]string(nil), f...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks structural constraints. Stage references inside Flows
// are resolved later by Build against the registered verifiers.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Name) == "" {
		return errors.New("Server Name must be set")
	}
	if c.Server.Secret == "" {
		return errors.New("Server Secret must be set")
	}

	if len(c.Flows) == 0 {
		return errors.New("at least one flow must be configured")
	}
	for i, f := range c.Flows {
		if len(f) == 0 {
			return fmt.Errorf("flow %d has no stages", i)
		}
	}

	if c.Stages.Token.Enabled && c.Stages.Token.SharedSecret == "" {
		return errors.New("Token stage requires SharedSecret")
	}
	if c.Stages.Recaptcha.Enabled {
		if c.Stages.Recaptcha.SecretKey == "" {
			return errors.New("Recaptcha stage requires SecretKey")
		}
		if c.Stages.Recaptcha.Timeout <= 0 {
			return errors.New("Recaptcha Timeout must be > 0")
		}
		if c.Stages.Recaptcha.RatePerSecond < 0 || c.Stages.Recaptcha.Burst < 0 {
			return errors.New("Recaptcha rate limits must be >= 0")
		}
	}
	if c.Stages.OAuth2.Enabled {
		o := c.Stages.OAuth2
		if o.ClientID == "" || o.AuthURL == "" || o.TokenURL == "" {
			return errors.New("OAuth2 stage requires ClientID, AuthURL and TokenURL")
		}
	}

	if c.Interactive.RedisPrefix == "" {
		return errors.New("Interactive RedisPrefix must be set")
	}
	if c.Interactive.SessionTTL <= 0 {
		return errors.New("Interactive SessionTTL must be > 0")
	}
	if c.Device.RedisPrefix == "" {
		return errors.New("Device RedisPrefix must be set")
	}
	if c.LoginToken.RedisPrefix == "" {
		return errors.New("LoginToken RedisPrefix must be set")
	}
	if c.LoginToken.TTL <= 0 {
		return errors.New("LoginToken TTL must be > 0")
	}

	if c.Stages.EmailIdentity.Enabled {
		if c.EmailIdentity.TTL <= 0 {
			return errors.New("EmailIdentity TTL must be > 0")
		}
		if c.EmailIdentity.MaxAttempts <= 0 {
			return errors.New("EmailIdentity MaxAttempts must be > 0")
		}
		if c.EmailIdentity.CodeDigits < 6 || c.EmailIdentity.CodeDigits > 10 {
			return errors.New("EmailIdentity CodeDigits must be between 6 and 10")
		}
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("Security MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when throttling")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
