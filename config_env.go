package hsAuth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// configEnv holds raw HSAUTH_* values. Defaults mirror defaultConfig.
type configEnv struct {
	ServerName   string `env:"HSAUTH_SERVER_NAME"   envDefault:"localhost"`
	ServerSecret string `env:"HSAUTH_SERVER_SECRET" envDefault:"macaroon_seed"`

	FlowsJSON string `env:"HSAUTH_FLOWS"`
	FlowsFile string `env:"HSAUTH_FLOWS_FILE"`

	PasswordEnabled      bool `env:"HSAUTH_STAGE_PASSWORD_ENABLED"       envDefault:"true"`
	DummyEnabled         bool `env:"HSAUTH_STAGE_DUMMY_ENABLED"          envDefault:"true"`
	EmailIdentityEnabled bool `env:"HSAUTH_STAGE_EMAIL_IDENTITY_ENABLED" envDefault:"false"`

	TokenEnabled      bool   `env:"HSAUTH_STAGE_TOKEN_ENABLED" envDefault:"false"`
	TokenSharedSecret string `env:"HSAUTH_STAGE_TOKEN_SHARED_SECRET"`

	RecaptchaEnabled   bool          `env:"HSAUTH_STAGE_RECAPTCHA_ENABLED"    envDefault:"false"`
	RecaptchaPublicKey string        `env:"HSAUTH_STAGE_RECAPTCHA_PUBLIC_KEY"`
	RecaptchaSecretKey string        `env:"HSAUTH_STAGE_RECAPTCHA_SECRET_KEY"`
	RecaptchaVerifyURL string        `env:"HSAUTH_STAGE_RECAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
	RecaptchaTimeout   time.Duration `env:"HSAUTH_STAGE_RECAPTCHA_TIMEOUT"    envDefault:"5s"`
	RecaptchaRate      float64       `env:"HSAUTH_STAGE_RECAPTCHA_RATE"       envDefault:"0"`
	RecaptchaBurst     int           `env:"HSAUTH_STAGE_RECAPTCHA_BURST"      envDefault:"0"`

	OAuth2Enabled      bool          `env:"HSAUTH_STAGE_OAUTH2_ENABLED"      envDefault:"false"`
	OAuth2ClientID     string        `env:"HSAUTH_STAGE_OAUTH2_CLIENT_ID"`
	OAuth2ClientSecret string        `env:"HSAUTH_STAGE_OAUTH2_CLIENT_SECRET"`
	OAuth2AuthURL      string        `env:"HSAUTH_STAGE_OAUTH2_AUTH_URL"`
	OAuth2TokenURL     string        `env:"HSAUTH_STAGE_OAUTH2_TOKEN_URL"`
	OAuth2RedirectURL  string        `env:"HSAUTH_STAGE_OAUTH2_REDIRECT_URL"`
	OAuth2Scopes       []string      `env:"HSAUTH_STAGE_OAUTH2_SCOPES"       envSeparator:","`
	OAuth2Timeout      time.Duration `env:"HSAUTH_STAGE_OAUTH2_TIMEOUT"      envDefault:"5s"`

	InteractivePrefix string        `env:"HSAUTH_INTERACTIVE_PREFIX"      envDefault:"uia"`
	SessionTTL        time.Duration `env:"HSAUTH_INTERACTIVE_SESSION_TTL" envDefault:"30m"`

	DevicePrefix   string `env:"HSAUTH_DEVICE_PREFIX"           envDefault:"dev"`
	UpdateLastSeen bool   `env:"HSAUTH_DEVICE_UPDATE_LAST_SEEN" envDefault:"true"`

	LoginTokenPrefix string        `env:"HSAUTH_LOGIN_TOKEN_PREFIX" envDefault:"lt"`
	LoginTokenTTL    time.Duration `env:"HSAUTH_LOGIN_TOKEN_TTL"    envDefault:"2m"`

	EmailIdentityPrefix      string        `env:"HSAUTH_EMAIL_IDENTITY_PREFIX"       envDefault:"eid"`
	EmailIdentityTTL         time.Duration `env:"HSAUTH_EMAIL_IDENTITY_TTL"          envDefault:"15m"`
	EmailIdentityMaxAttempts int           `env:"HSAUTH_EMAIL_IDENTITY_MAX_ATTEMPTS" envDefault:"5"`
	EmailIdentityCodeDigits  int           `env:"HSAUTH_EMAIL_IDENTITY_CODE_DIGITS"  envDefault:"6"`

	PasswordMemory      uint32 `env:"HSAUTH_PASSWORD_MEMORY"      envDefault:"65536"`
	PasswordTime        uint32 `env:"HSAUTH_PASSWORD_TIME"        envDefault:"3"`
	PasswordParallelism uint8  `env:"HSAUTH_PASSWORD_PARALLELISM" envDefault:"2"`

	EnableIPThrottle      bool          `env:"HSAUTH_SECURITY_IP_THROTTLE"       envDefault:"false"`
	MaxLoginAttempts      int           `env:"HSAUTH_SECURITY_MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	LoginCooldownDuration time.Duration `env:"HSAUTH_SECURITY_LOGIN_COOLDOWN"     envDefault:"15m"`

	AuditEnabled    bool `env:"HSAUTH_AUDIT_ENABLED"      envDefault:"false"`
	AuditBufferSize int  `env:"HSAUTH_AUDIT_BUFFER_SIZE"  envDefault:"1024"`
	AuditDropIfFull bool `env:"HSAUTH_AUDIT_DROP_IF_FULL" envDefault:"true"`

	MetricsEnabled bool `env:"HSAUTH_METRICS_ENABLED"            envDefault:"false"`
	MetricsLatency bool `env:"HSAUTH_METRICS_LATENCY_HISTOGRAMS" envDefault:"false"`
}

// LoadConfigFromEnv builds a Config from HSAUTH_* environment variables.
// Flows come from HSAUTH_FLOWS (JSON array of stage arrays) or, failing
// that, the TOML file named by HSAUTH_FLOWS_FILE.
func LoadConfigFromEnv() (Config, error) {
	return loadConfigFromEnvironment(nil)
}

func loadConfigFromEnvironment(environ map[string]string) (Config, error) {
	var raw configEnv
	if err := env.ParseWithOptions(&raw, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := defaultConfig()
	cfg.Server = ServerConfig{Name: raw.ServerName, Secret: raw.ServerSecret}

	cfg.Stages.Password.Enabled = raw.PasswordEnabled
	cfg.Stages.Dummy.Enabled = raw.DummyEnabled
	cfg.Stages.EmailIdentity.Enabled = raw.EmailIdentityEnabled
	cfg.Stages.Token = TokenStageConfig{
		Enabled:      raw.TokenEnabled,
		SharedSecret: raw.TokenSharedSecret,
	}
	cfg.Stages.Recaptcha = RecaptchaStageConfig{
		Enabled:       raw.RecaptchaEnabled,
		PublicKey:     raw.RecaptchaPublicKey,
		SecretKey:     raw.RecaptchaSecretKey,
		VerifyURL:     raw.RecaptchaVerifyURL,
		Timeout:       raw.RecaptchaTimeout,
		RatePerSecond: raw.RecaptchaRate,
		Burst:         raw.RecaptchaBurst,
	}
	cfg.Stages.OAuth2 = OAuth2StageConfig{
		Enabled:      raw.OAuth2Enabled,
		ClientID:     raw.OAuth2ClientID,
		ClientSecret: raw.OAuth2ClientSecret,
		AuthURL:      raw.OAuth2AuthURL,
		TokenURL:     raw.OAuth2TokenURL,
		RedirectURL:  raw.OAuth2RedirectURL,
		Scopes:       trimCSV(raw.OAuth2Scopes),
		Timeout:      raw.OAuth2Timeout,
	}

	cfg.Interactive = InteractiveConfig{RedisPrefix: raw.InteractivePrefix, SessionTTL: raw.SessionTTL}
	cfg.Device = DeviceConfig{RedisPrefix: raw.DevicePrefix, UpdateLastSeen: raw.UpdateLastSeen}
	cfg.LoginToken = LoginTokenConfig{RedisPrefix: raw.LoginTokenPrefix, TTL: raw.LoginTokenTTL}
	cfg.EmailIdentity = EmailIdentityConfig{
		RedisPrefix: raw.EmailIdentityPrefix,
		TTL:         raw.EmailIdentityTTL,
		MaxAttempts: raw.EmailIdentityMaxAttempts,
		CodeDigits:  raw.EmailIdentityCodeDigits,
	}

	cfg.Password.Memory = raw.PasswordMemory
	cfg.Password.Time = raw.PasswordTime
	cfg.Password.Parallelism = raw.PasswordParallelism

	cfg.Security = SecurityConfig{
		EnableIPThrottle:      raw.EnableIPThrottle,
		MaxLoginAttempts:      raw.MaxLoginAttempts,
		LoginCooldownDuration: raw.LoginCooldownDuration,
	}
	cfg.Audit = AuditConfig{
		Enabled:    raw.AuditEnabled,
		BufferSize: raw.AuditBufferSize,
		DropIfFull: raw.AuditDropIfFull,
	}
	cfg.Metrics = MetricsConfig{
		Enabled:                 raw.MetricsEnabled,
		EnableLatencyHistograms: raw.MetricsLatency,
	}

	switch {
	case strings.TrimSpace(raw.FlowsJSON) != "":
		var flows [][]string
		if err := json.Unmarshal([]byte(raw.FlowsJSON), &flows); err != nil {
			return Config{}, fmt.Errorf("parse HSAUTH_FLOWS: %w", err)
		}
		cfg.Flows = flows
	case raw.FlowsFile != "":
		flows, err := LoadFlowsFile(raw.FlowsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Flows = flows
	}

	return cfg, nil
}

type flowsFile struct {
	Flow []struct {
		Stages []string `toml:"stages"`
	} `toml:"flow"`
}

// LoadFlowsFile reads flow definitions from a TOML file of the form
//
//	[[flow]]
//	stages = ["m.login.recaptcha", "m.login.dummy"]
func LoadFlowsFile(path string) ([][]string, error) {
	var f flowsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("load flows file: %w", err)
	}
	if len(f.Flow) == 0 {
		return nil, fmt.Errorf("load flows file: %s defines no flows", path)
	}

	flows := make([][]string, 0, len(f.Flow))
	for _, fl := range f.Flow {
		flows = append(flows, trimCSV(fl.Stages))
	}
	return flows, nil
}

func trimCSV(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
