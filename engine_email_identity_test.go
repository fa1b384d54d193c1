package hsAuth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/hsAuth/stage"
)

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
	fail  error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{codes: make(map[string]string)}
}

func (s *recordingSender) SendValidationCode(_ context.Context, address, sid, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.codes[sid] = code
	return nil
}

func (s *recordingSender) code(sid string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[sid]
}

func newEmailTestEngine(t *testing.T, sender *recordingSender) *Engine {
	t.Helper()

	cfg := testConfig()
	cfg.Stages.EmailIdentity.Enabled = true
	cfg.EmailIdentity.MaxAttempts = 2
	cfg.Flows = [][]string{{stage.EmailIdentity}}
	engine, _ := buildTestEngine(t, cfg, newMemUserProvider(t, nil), func(b *Builder) {
		b.WithEmailSender(sender)
	})
	return engine
}

func TestEmailIdentityStage(t *testing.T) {
	sender := newRecordingSender()
	engine := newEmailTestEngine(t, sender)
	ctx := context.Background()

	sid, err := engine.RequestEmailIdentity(ctx, "Alice <alice@example.org>", "cs1")
	if err != nil {
		t.Fatalf("RequestEmailIdentity failed: %v", err)
	}
	code := sender.code(sid)
	if len(code) != 6 {
		t.Fatalf("expected 6 digit code, got %q", code)
	}

	ie := requireInteractive(t, engine.ValidateInteractive(ctx, Attempt{}))
	session := ie.Flows.Session
	proof := stage.Proof{SID: sid, ClientSecret: "cs1"}

	// Not yet confirmed.
	ie = requireInteractive(t, engine.ValidateInteractive(ctx, Attempt{Session: session, Type: stage.EmailIdentity, Proof: proof}))
	if ie.Flows.Errcode != ErrcodeForbidden {
		t.Fatalf("expected forbidden before confirmation, got %+v", ie.Flows)
	}

	if err := engine.ConfirmEmailIdentity(ctx, sid, "cs1", code); err != nil {
		t.Fatalf("ConfirmEmailIdentity failed: %v", err)
	}

	wrongSecret := stage.Proof{SID: sid, ClientSecret: "other"}
	requireInteractive(t, engine.ValidateInteractive(ctx, Attempt{Session: session, Type: stage.EmailIdentity, Proof: wrongSecret}))

	if err := engine.ValidateInteractive(ctx, Attempt{Session: session, Type: stage.EmailIdentity, Proof: proof}); err != nil {
		t.Fatalf("expected satisfied, got %v", err)
	}
}

func TestEmailIdentitySatisfiesOnlyOneSession(t *testing.T) {
	sender := newRecordingSender()
	engine := newEmailTestEngine(t, sender)
	ctx := context.Background()

	sid, err := engine.RequestEmailIdentity(ctx, "alice@example.org", "cs1")
	if err != nil {
		t.Fatalf("RequestEmailIdentity failed: %v", err)
	}
	if err := engine.ConfirmEmailIdentity(ctx, sid, "cs1", sender.code(sid)); err != nil {
		t.Fatalf("ConfirmEmailIdentity failed: %v", err)
	}
	proof := stage.Proof{SID: sid, ClientSecret: "cs1"}

	first := requireInteractive(t, engine.ValidateInteractive(ctx, Attempt{})).Flows.Session
	if err := engine.ValidateInteractive(ctx, Attempt{Session: first, Type: stage.EmailIdentity, Proof: proof}); err != nil {
		t.Fatalf("expected satisfied, got %v", err)
	}

	second := requireInteractive(t, engine.ValidateInteractive(ctx, Attempt{})).Flows.Session
	ie := requireInteractive(t, engine.ValidateInteractive(ctx, Attempt{Session: second, Type: stage.EmailIdentity, Proof: proof}))
	if ie.Flows.Errcode != ErrcodeForbidden || len(ie.Flows.Completed) != 0 {
		t.Fatalf("a used validation must not satisfy another session, got %+v", ie.Flows)
	}
}

func TestEmailIdentityAttemptsExceeded(t *testing.T) {
	sender := newRecordingSender()
	engine := newEmailTestEngine(t, sender)
	ctx := context.Background()

	sid, err := engine.RequestEmailIdentity(ctx, "bob@example.org", "cs")
	if err != nil {
		t.Fatalf("RequestEmailIdentity failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := engine.ConfirmEmailIdentity(ctx, sid, "cs", "000000x"); !errors.Is(err, ErrEmailIdentityInvalid) && !errors.Is(err, ErrEmailIdentityAttempts) {
			t.Fatalf("attempt %d: expected rejection, got %v", i, err)
		}
	}

	err = engine.ConfirmEmailIdentity(ctx, sid, "cs", sender.code(sid))
	if err == nil {
		t.Fatal("expected burned session to reject the correct code")
	}
	if ErrorKind(err) != ErrcodeForbidden {
		t.Fatalf("expected M_FORBIDDEN, got %v", err)
	}
}

func TestEmailIdentityRejectsBadInput(t *testing.T) {
	engine := newEmailTestEngine(t, newRecordingSender())
	ctx := context.Background()

	if _, err := engine.RequestEmailIdentity(ctx, "not an address", "cs"); ErrorKind(err) != ErrcodeBadJSON {
		t.Fatalf("expected M_BAD_JSON for bad address, got %v", err)
	}
	if _, err := engine.RequestEmailIdentity(ctx, "a@example.org", " "); ErrorKind(err) != ErrcodeBadJSON {
		t.Fatalf("expected M_BAD_JSON for blank secret, got %v", err)
	}
	if err := engine.ConfirmEmailIdentity(ctx, "", "cs", "1"); ErrorKind(err) != ErrcodeBadJSON {
		t.Fatalf("expected M_BAD_JSON for missing sid, got %v", err)
	}
}

func TestEmailIdentityDisabled(t *testing.T) {
	engine, _ := buildTestEngine(t, testConfig(), newMemUserProvider(t, nil))

	_, err := engine.RequestEmailIdentity(context.Background(), "a@example.org", "cs")
	if !errors.Is(err, ErrEmailIdentityDisabled) {
		t.Fatalf("expected ErrEmailIdentityDisabled, got %v", err)
	}
}

func TestEmailIdentitySendFailure(t *testing.T) {
	sender := newRecordingSender()
	sender.fail = errors.New("smtp down")
	engine := newEmailTestEngine(t, sender)

	_, err := engine.RequestEmailIdentity(context.Background(), "a@example.org", "cs")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
