package hsAuth

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/MrEthical07/hsAuth/stage"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !reflect.DeepEqual(cfg.Flows, [][]string{{stage.Dummy}}) {
		t.Fatalf("unexpected default flows %v", cfg.Flows)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name:   "blank server name",
			mutate: func(c *Config) { c.Server.Name = "  " },
		},
		{
			name:   "blank server secret",
			mutate: func(c *Config) { c.Server.Secret = "" },
		},
		{
			name:   "no flows",
			mutate: func(c *Config) { c.Flows = nil },
		},
		{
			name:   "empty flow",
			mutate: func(c *Config) { c.Flows = [][]string{{stage.Dummy}, {}} },
		},
		{
			name:   "token stage without secret",
			mutate: func(c *Config) { c.Stages.Token.Enabled = true },
		},
		{
			name: "token stage with secret",
			mutate: func(c *Config) {
				c.Stages.Token = TokenStageConfig{Enabled: true, SharedSecret: "s"}
			},
			wantValid: true,
		},
		{
			name:   "recaptcha without secret key",
			mutate: func(c *Config) { c.Stages.Recaptcha.Enabled = true },
		},
		{
			name: "recaptcha zero timeout",
			mutate: func(c *Config) {
				c.Stages.Recaptcha.Enabled = true
				c.Stages.Recaptcha.SecretKey = "k"
				c.Stages.Recaptcha.Timeout = 0
			},
		},
		{
			name: "oauth2 missing endpoints",
			mutate: func(c *Config) {
				c.Stages.OAuth2.Enabled = true
				c.Stages.OAuth2.ClientID = "id"
			},
		},
		{
			name:   "zero session ttl",
			mutate: func(c *Config) { c.Interactive.SessionTTL = 0 },
		},
		{
			name:   "blank device prefix",
			mutate: func(c *Config) { c.Device.RedisPrefix = "" },
		},
		{
			name: "email identity short code",
			mutate: func(c *Config) {
				c.Stages.EmailIdentity.Enabled = true
				c.EmailIdentity.CodeDigits = 4
			},
		},
		{
			name:      "email identity settings ignored when disabled",
			mutate:    func(c *Config) { c.EmailIdentity.CodeDigits = 0 },
			wantValid: true,
		},
		{
			name:   "weak argon2 memory",
			mutate: func(c *Config) { c.Password.Memory = 1024 },
		},
		{
			name: "throttle without cooldown",
			mutate: func(c *Config) {
				c.Security.MaxLoginAttempts = 3
				c.Security.LoginCooldownDuration = 0
			},
		},
		{
			name: "throttle disabled without cooldown",
			mutate: func(c *Config) {
				c.Security.MaxLoginAttempts = 0
				c.Security.LoginCooldownDuration = 0
			},
			wantValid: true,
		},
		{
			name: "audit zero buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
		},
		{
			name:   "histograms without metrics",
			mutate: func(c *Config) { c.Metrics.EnableLatencyHistograms = true },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigDeepCopiesFlows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Flows = [][]string{{stage.Password, stage.Dummy}}
	cfg.Stages.OAuth2.Scopes = []string{"openid"}

	out := cloneConfig(cfg)
	out.Flows[0][0] = "mutated"
	out.Stages.OAuth2.Scopes[0] = "mutated"

	if cfg.Flows[0][0] != stage.Password || cfg.Stages.OAuth2.Scopes[0] != "openid" {
		t.Fatal("cloneConfig shares backing arrays")
	}
}

func TestLoadConfigFromEnvironmentDefaults(t *testing.T) {
	cfg, err := loadConfigFromEnvironment(map[string]string{})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, defaultConfig()) {
		t.Fatalf("empty environment must yield defaults:\n got %+v\nwant %+v", cfg, defaultConfig())
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	cfg, err := loadConfigFromEnvironment(map[string]string{
		"HSAUTH_SERVER_NAME":                 "matrix.example.org",
		"HSAUTH_SERVER_SECRET":               "s3cret",
		"HSAUTH_FLOWS":                       `[["m.login.recaptcha","m.login.dummy"],["m.login.password"]]`,
		"HSAUTH_STAGE_RECAPTCHA_ENABLED":     "true",
		"HSAUTH_STAGE_RECAPTCHA_PUBLIC_KEY":  "pub",
		"HSAUTH_STAGE_RECAPTCHA_SECRET_KEY":  "priv",
		"HSAUTH_STAGE_OAUTH2_SCOPES":         " openid , profile ,",
		"HSAUTH_INTERACTIVE_SESSION_TTL":     "10m",
		"HSAUTH_SECURITY_MAX_LOGIN_ATTEMPTS": "0",
		"HSAUTH_AUDIT_ENABLED":               "true",
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Name != "matrix.example.org" || cfg.Server.Secret != "s3cret" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	want := [][]string{{stage.Recaptcha, stage.Dummy}, {stage.Password}}
	if !reflect.DeepEqual(cfg.Flows, want) {
		t.Fatalf("unexpected flows %v", cfg.Flows)
	}
	if !cfg.Stages.Recaptcha.Enabled || cfg.Stages.Recaptcha.PublicKey != "pub" {
		t.Fatalf("unexpected recaptcha config %+v", cfg.Stages.Recaptcha)
	}
	if !reflect.DeepEqual(cfg.Stages.OAuth2.Scopes, []string{"openid", "profile"}) {
		t.Fatalf("unexpected scopes %v", cfg.Stages.OAuth2.Scopes)
	}
	if cfg.Interactive.SessionTTL != 10*time.Minute {
		t.Fatalf("unexpected session ttl %v", cfg.Interactive.SessionTTL)
	}
	if cfg.Security.MaxLoginAttempts != 0 || !cfg.Audit.Enabled {
		t.Fatalf("unexpected security/audit config %+v %+v", cfg.Security, cfg.Audit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
}

func TestLoadConfigFromEnvironmentBadFlows(t *testing.T) {
	if _, err := loadConfigFromEnvironment(map[string]string{"HSAUTH_FLOWS": "[not json"}); err == nil {
		t.Fatal("expected error for malformed HSAUTH_FLOWS")
	}
	if _, err := loadConfigFromEnvironment(map[string]string{"HSAUTH_INTERACTIVE_SESSION_TTL": "soon"}); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestLoadFlowsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flows.toml")
	body := `
[[flow]]
stages = ["m.login.recaptcha", " m.login.dummy "]

[[flow]]
stages = ["m.login.password"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write flows file: %v", err)
	}

	flows, err := LoadFlowsFile(path)
	if err != nil {
		t.Fatalf("LoadFlowsFile failed: %v", err)
	}
	want := [][]string{{stage.Recaptcha, stage.Dummy}, {stage.Password}}
	if !reflect.DeepEqual(flows, want) {
		t.Fatalf("unexpected flows %v", flows)
	}

	cfg, err := loadConfigFromEnvironment(map[string]string{"HSAUTH_FLOWS_FILE": path})
	if err != nil {
		t.Fatalf("load via env failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.Flows, want) {
		t.Fatalf("unexpected env flows %v", cfg.Flows)
	}
}

func TestLoadFlowsFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(path, []byte("# nothing\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFlowsFile(path); err == nil {
		t.Fatal("expected error for file without flows")
	}
}
