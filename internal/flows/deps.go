package flows

import "context"

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Interactive   InteractiveDeps
	PasswordLogin PasswordLoginDeps
	TokenLogin    TokenLoginDeps
	Device        DeviceDeps
	Logout        LogoutDeps
}

// Hooks are the observability callbacks shared by every flow.
type Hooks struct {
	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, deviceID, sessionID string, err error, meta func() map[string]string)
	Warn      func(msg string, err error)
}

func (h Hooks) withDefaults() Hooks {
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, error) {}
	}
	return h
}
