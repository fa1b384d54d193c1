package stage

import "context"

const (
	Password      = "m.login.password"
	Recaptcha     = "m.login.recaptcha"
	Token         = "m.login.token"
	OAuth2Stage   = "m.login.oauth2"
	EmailIdentity = "m.login.email.identity"
	Dummy         = "m.login.dummy"
)

// Proof is one client-supplied stage attempt. Only the fields relevant to
// Type are populated.
type Proof struct {
	Type    string
	Session string

	User     string
	Password string

	Token string

	// Response is the CAPTCHA response token.
	Response string

	// Code is the OAuth2 authorization code.
	Code string

	// SID and ClientSecret identify a validated third-party id session.
	SID          string
	ClientSecret string

	RemoteAddr string
}

// Verifier checks a single stage proof.
type Verifier interface {
	Stage() string
	Params() map[string]string
	Authenticate(ctx context.Context, proof Proof) bool
}

// DummyVerifier accepts every attempt. Flows use it for a no-op
// acknowledgement step.
type DummyVerifier struct{}

func (DummyVerifier) Stage() string                            { return Dummy }
func (DummyVerifier) Params() map[string]string                { return nil }
func (DummyVerifier) Authenticate(context.Context, Proof) bool { return true }
