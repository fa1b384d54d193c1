package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	hsAuth "github.com/MrEthical07/hsAuth"
	"github.com/MrEthical07/hsAuth/metrics/export/prometheus"
	"github.com/MrEthical07/hsAuth/password"
	"github.com/MrEthical07/hsAuth/stage"
)

const (
	alice    = "@alice:example.org"
	alicePw  = "wonderland"
	loginURL = clientPrefix + "/login"
)

type users struct {
	byID map[string]hsAuth.User
	err  error
}

func (u *users) GetUser(_ context.Context, id string) (hsAuth.User, error) {
	if u.err != nil {
		return hsAuth.User{}, u.err
	}
	user, ok := u.byID[id]
	if !ok {
		return hsAuth.User{}, hsAuth.ErrUserNotFound
	}
	return user, nil
}

func (u *users) Exists(_ context.Context, id string) (bool, error) {
	_, ok := u.byID[id]
	return ok, u.err
}

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) SendValidationCode(_ context.Context, _, sid, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[sid] = code
	return nil
}

type fixture struct {
	engine  *hsAuth.Engine
	handler http.Handler
	users   *users
	mail    *mailbox
}

func newFixture(t *testing.T, mutate func(*hsAuth.Config)) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := hsAuth.DefaultConfig()
	cfg.Server.Name = "example.org"
	cfg.Password = hsAuth.PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	hasher, err := password.NewHasher(password.Config{
		Memory: cfg.Password.Memory, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)
	hash, err := hasher.Hash(alicePw)
	require.NoError(t, err)

	f := &fixture{
		users: &users{byID: map[string]hsAuth.User{alice: {ID: alice, PasswordHash: hash}}},
		mail:  &mailbox{codes: map[string]string{}},
	}

	engine, err := hsAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(f.users).
		WithEmailSender(f.mail).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	f.engine = engine
	f.handler = NewRouter(engine, Options{Metrics: prometheus.NewPrometheusExporter(engine).Handler()})
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (f *fixture) login(t *testing.T, deviceID string) string {
	t.Helper()
	rec, body := f.do(t, http.MethodPost, loginURL, "", map[string]string{
		"type": stage.Password, "user": alice, "password": alicePw, "device_id": deviceID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["access_token"].(string)
}

func TestLoginTypes(t *testing.T) {
	f := newFixture(t, nil)

	rec, body := f.do(t, http.MethodGet, loginURL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	flows := body["flows"].([]any)
	require.Len(t, flows, 2)
	require.Equal(t, stage.Password, flows[0].(map[string]any)["type"])
	require.Equal(t, stage.Token, flows[1].(map[string]any)["type"])
}

func TestLoginRejectsMissingJSON(t *testing.T) {
	f := newFixture(t, nil)

	for _, body := range []string{"", "   ", "{not json"} {
		rec, out := f.do(t, http.MethodPost, loginURL, "", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "M_NOT_JSON", out["errcode"])
		require.Equal(t, "Missing json.", out["error"])
	}
}

func TestLoginErrors(t *testing.T) {
	f := newFixture(t, nil)

	rec, out := f.do(t, http.MethodPost, loginURL, "", map[string]string{"type": stage.Password, "user": alice, "password": "nope"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "M_FORBIDDEN", out["errcode"])
	require.Equal(t, "Invalid login or password.", out["error"])

	rec, out = f.do(t, http.MethodPost, loginURL, "", map[string]string{"type": "m.login.sso"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "M_BAD_JSON", out["errcode"])
	require.Equal(t, "Bad login type.", out["error"])
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t, nil)

	rec, out := f.do(t, http.MethodPost, loginURL, "", map[string]string{
		"type": stage.Password, "user": alice, "password": alicePw, "initial_device_display_name": "Phone",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, alice, out["user_id"])
	require.Equal(t, "example.org", out["home_server"])
	require.NotEmpty(t, out["device_id"])
	token := out["access_token"].(string)

	rec, _ = f.do(t, http.MethodPost, clientPrefix+"/logout", "", map[string]string{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out = f.do(t, http.MethodPost, clientPrefix+"/logout", token, map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, out)

	rec, out = f.do(t, http.MethodPost, clientPrefix+"/logout", token, map[string]string{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "M_UNKNOWN_TOKEN", out["errcode"])
}

func TestDeleteDevicesInteractiveAuth(t *testing.T) {
	f := newFixture(t, func(c *hsAuth.Config) {
		c.Flows = [][]string{{stage.Password}}
	})
	caller := f.login(t, "DESKTOP")
	victim := f.login(t, "OLDPHONE")
	url := clientPrefix + "/delete_devices"

	rec, out := f.do(t, http.MethodPost, url, caller, map[string]any{"devices": []string{"OLDPHONE"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	session, _ := out["session"].(string)
	require.NotEmpty(t, session)
	require.Equal(t, []any{}, out["completed"])
	require.Nil(t, out["errcode"])

	rec, out = f.do(t, http.MethodPost, url, caller, map[string]any{
		"devices": []string{"OLDPHONE"},
		"auth":    map[string]string{"type": stage.Password, "session": session, "password": "guess"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "M_FORBIDDEN", out["errcode"])
	require.Equal(t, session, out["session"])

	rec, _ = f.do(t, http.MethodPost, url, caller, map[string]any{
		"devices": []string{"OLDPHONE"},
		"auth":    map[string]string{"type": stage.Password, "session": session, "user": "@mallory:example.org", "password": alicePw},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := f.engine.Authenticate(context.Background(), victim)
	require.ErrorIs(t, err, hsAuth.ErrUnknownToken)
	_, err = f.engine.Authenticate(context.Background(), caller)
	require.NoError(t, err)

	rec, out = f.do(t, http.MethodPost, url, caller, map[string]any{
		"devices": []string{"OLDPHONE"},
		"auth":    map[string]string{"type": stage.Password, "session": session, "password": alicePw},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "M_NOT_FOUND", out["errcode"])
}

func TestEmailIdentityEndpoints(t *testing.T) {
	f := newFixture(t, func(c *hsAuth.Config) {
		c.Stages.EmailIdentity.Enabled = true
	})

	rec, out := f.do(t, http.MethodPost, clientPrefix+"/account/3pid/email/requestToken", "", map[string]any{
		"client_secret": "cs", "email": "alice@example.org", "send_attempt": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sid := out["sid"].(string)
	require.NotEmpty(t, sid)

	f.mail.mu.Lock()
	code := f.mail.codes[sid]
	f.mail.mu.Unlock()

	rec, out = f.do(t, http.MethodGet, clientPrefix+"/account/3pid/email/submitToken?sid="+sid+"&client_secret=cs&token=000", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "M_FORBIDDEN", out["errcode"])

	rec, out = f.do(t, http.MethodPost, clientPrefix+"/account/3pid/email/submitToken", "", map[string]string{
		"sid": sid, "client_secret": "cs", "token": code,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["success"])
}

func TestInternalErrorsCarryReference(t *testing.T) {
	f := newFixture(t, nil)
	f.users.err = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	rec, out := f.do(t, http.MethodPost, loginURL, "", map[string]string{"type": stage.Password, "user": alice, "password": alicePw})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "M_UNKNOWN", out["errcode"])
	msg := out["error"].(string)
	require.Contains(t, msg, "ref ")
	require.NotContains(t, msg, "10.0.0.5")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, "PHONE")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hsauth_login_success_total 1")
	require.Contains(t, rec.Body.String(), "hsauth_device_minted_total 1")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, nil)

	rec, out := f.do(t, http.MethodGet, clientPrefix+"/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "M_NOT_FOUND", out["errcode"])
}
