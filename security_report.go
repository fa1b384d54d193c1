package hsAuth

import (
	internalsecurity "github.com/MrEthical07/hsAuth/internal/security"
	"github.com/MrEthical07/hsAuth/stage"
)

type (
	// SecurityReport is a read-only snapshot of the engine's security
	// posture, returned by [Engine.SecurityReport].
	SecurityReport       = internalsecurity.Report
	PasswordConfigReport = internalsecurity.PasswordReport
)

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	var stages []string
	if e.registry != nil {
		stages = e.registry.Stages()
	}

	return internalsecurity.BuildReport(internalsecurity.ReportInput{
		ServerName:    e.config.Server.Name,
		ServerSecret:  e.config.Server.Secret,
		DefaultSecret: defaultConfig().Server.Secret,
		Stages:        stages,
		Flows:         e.flowStages,
		DummyStage:    stage.Dummy,
		Password: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		SessionTTL:            e.config.Interactive.SessionTTL,
		LoginTokenTTL:         e.config.LoginToken.TTL,
		MaxLoginAttempts:      e.config.Security.MaxLoginAttempts,
		LoginCooldownDuration: e.config.Security.LoginCooldownDuration,
		EnableIPThrottle:      e.config.Security.EnableIPThrottle,
		EmailIdentityEnabled:  e.config.Stages.EmailIdentity.Enabled,
		AuditEnabled:          e.config.Audit.Enabled,
	})
}
