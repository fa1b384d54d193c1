package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report summarizes the security posture of a built engine.
type Report struct {
	ServerName          string
	Stages              []string
	Flows               [][]string
	Argon2              PasswordReport
	SessionTTL          time.Duration
	LoginTokenTTL       time.Duration
	RateLimitingActive  bool
	IPThrottleActive    bool
	EmailIdentityActive bool
	AuditEnabled        bool
	DefaultSecret       bool
	DummyOnlyFlow       bool
	Warnings            []string
}

type ReportInput struct {
	ServerName            string
	ServerSecret          string
	DefaultSecret         string
	Stages                []string
	Flows                 [][]string
	DummyStage            string
	Password              PasswordReport
	SessionTTL            time.Duration
	LoginTokenTTL         time.Duration
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
	EmailIdentityEnabled  bool
	AuditEnabled          bool
}

// recommendedMemoryKB is the argon2id memory cost below which a warning
// is reported.
const recommendedMemoryKB = 64 * 1024

func BuildReport(input ReportInput) Report {
	rateLimiting := input.MaxLoginAttempts > 0 &&
		input.LoginCooldownDuration > 0

	dummyOnly := false
	for _, f := range input.Flows {
		if len(f) > 0 && allEqual(f, input.DummyStage) {
			dummyOnly = true
			break
		}
	}

	r := Report{
		ServerName:          input.ServerName,
		Stages:              append([]string(nil), input.Stages...),
		Flows:               cloneFlows(input.Flows),
		Argon2:              input.Password,
		SessionTTL:          input.SessionTTL,
		LoginTokenTTL:       input.LoginTokenTTL,
		RateLimitingActive:  rateLimiting,
		IPThrottleActive:    rateLimiting && input.EnableIPThrottle,
		EmailIdentityActive: input.EmailIdentityEnabled,
		AuditEnabled:        input.AuditEnabled,
		DefaultSecret:       input.ServerSecret == input.DefaultSecret,
		DummyOnlyFlow:       dummyOnly,
	}

	if r.DefaultSecret {
		r.Warnings = append(r.Warnings, "server secret is the built-in default")
	}
	if r.DummyOnlyFlow {
		r.Warnings = append(r.Warnings, "a flow is satisfied by "+input.DummyStage+" alone")
	}
	if !r.RateLimitingActive {
		r.Warnings = append(r.Warnings, "password login throttling is disabled")
	}
	if input.Password.Memory < recommendedMemoryKB {
		r.Warnings = append(r.Warnings, "argon2id memory cost is below 64 MiB")
	}
	return r
}

func allEqual(stages []string, want string) bool {
	for _, s := range stages {
		if s != want {
			return false
		}
	}
	return true
}

func cloneFlows(flows [][]string) [][]string {
	out := make([][]string, len(flows))
	for i, f := range flows {
		out[i] = append([]string(nil), f...)
	}
	return out
}
