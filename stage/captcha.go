package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultCaptchaVerifyURL is the reCAPTCHA siteverify endpoint.
const DefaultCaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

const (
	defaultCaptchaTimeout = 5 * time.Second
	maxCaptchaReplyBytes  = 64 << 10
)

// CaptchaConfig configures the m.login.recaptcha verifier.
type CaptchaConfig struct {
	PublicKey string
	SecretKey string
	VerifyURL string
	Timeout   time.Duration

	// RatePerSecond caps outbound verification calls; 0 disables the cap.
	RatePerSecond float64
	Burst         int
}

// CaptchaVerifier posts the client's response token to a siteverify
// endpoint and accepts the stage only on an explicit boolean success.
type CaptchaVerifier struct {
	cfg     CaptchaConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewCaptchaVerifier(cfg CaptchaConfig, client *http.Client, logger *zap.Logger) (*CaptchaVerifier, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("recaptcha secret key required")
	}
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultCaptchaVerifyURL
	}
	if _, err := url.ParseRequestURI(cfg.VerifyURL); err != nil {
		return nil, fmt.Errorf("invalid recaptcha verify url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCaptchaTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := &CaptchaVerifier{cfg: cfg, client: client, logger: logger}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return v, nil
}

func (v *CaptchaVerifier) Stage() string { return Recaptcha }

func (v *CaptchaVerifier) Params() map[string]string {
	return map[string]string{"public_key": v.cfg.PublicKey}
}

func (v *CaptchaVerifier) Authenticate(ctx context.Context, proof Proof) bool {
	if proof.Response == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			v.logger.Warn("recaptcha verification throttled", zap.Error(err))
			return false
		}
	}

	ok, err := v.verify(ctx, proof)
	if err != nil {
		v.logger.Warn("recaptcha verification failed", zap.Error(err))
		return false
	}
	return ok
}

func (v *CaptchaVerifier) verify(ctx context.Context, proof Proof) (bool, error) {
	form := url.Values{}
	form.Set("secret", v.cfg.SecretKey)
	form.Set("response", proof.Response)
	if proof.RemoteAddr != "" {
		form.Set("remoteip", proof.RemoteAddr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify status %d", resp.StatusCode)
	}

	var reply map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCaptchaReplyBytes)).Decode(&reply); err != nil {
		return false, fmt.Errorf("decode siteverify reply: %w", err)
	}

	success, ok := reply["success"].(bool)
	return ok && success, nil
}
