package stage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OAuth2Config configures the m.login.oauth2 verifier.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration
}

// OAuth2Verifier completes the redirect flow by exchanging the
// authorization code the client obtained from the provider.
type OAuth2Verifier struct {
	conf    *oauth2.Config
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

func NewOAuth2Verifier(cfg OAuth2Config, client *http.Client, logger *zap.Logger) (*OAuth2Verifier, error) {
	if cfg.ClientID == "" || cfg.TokenURL == "" || cfg.AuthURL == "" {
		return nil, errors.New("oauth2 stage requires client id, auth url and token url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OAuth2Verifier{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		timeout: cfg.Timeout,
		client:  client,
		logger:  logger,
	}, nil
}

func (v *OAuth2Verifier) Stage() string { return OAuth2Stage }

func (v *OAuth2Verifier) Params() map[string]string {
	params := map[string]string{
		"authorization_endpoint": v.conf.Endpoint.AuthURL,
		"client_id":              v.conf.ClientID,
	}
	if v.conf.RedirectURL != "" {
		params["redirect_uri"] = v.conf.RedirectURL
	}
	return params
}

func (v *OAuth2Verifier) Authenticate(ctx context.Context, proof Proof) bool {
	if proof.Code == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if v.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.client)
	}

	tok, err := v.conf.Exchange(ctx, proof.Code)
	if err != nil {
		v.logger.Warn("oauth2 code exchange failed", zap.Error(err))
		return false
	}
	return tok.Valid()
}
