package stage

import (
	"context"
	"errors"
	"testing"
)

type paramVerifier struct {
	id     string
	params map[string]string
}

func (p paramVerifier) Stage() string                            { return p.id }
func (p paramVerifier) Params() map[string]string                { return p.params }
func (p paramVerifier) Authenticate(context.Context, Proof) bool { return false }

func TestRegistryRejectsDuplicateAndFrozen(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(DummyVerifier{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(DummyVerifier{}); !errors.Is(err, ErrDuplicateStage) {
		t.Fatalf("expected ErrDuplicateStage, got %v", err)
	}

	r.Freeze()
	if err := r.Register(NewSharedSecretVerifier("s")); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
}

func TestRegistryRejectsBadStageIDs(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"", "a,b", "has space"} {
		if err := r.Register(paramVerifier{id: id}); err == nil {
			t.Fatalf("expected rejection for %q", id)
		}
	}
}

func TestResolveFlows(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(DummyVerifier{})
	_ = r.Register(paramVerifier{id: Recaptcha, params: map[string]string{"public_key": "pk"}})
	r.Freeze()

	flows, err := r.ResolveFlows([][]string{{Dummy}, {Recaptcha, Dummy, Recaptcha}})
	if err != nil {
		t.Fatalf("ResolveFlows failed: %v", err)
	}
	if len(flows) != 2 {
		t.Fatalf("expected 2 flows, got %d", len(flows))
	}
	if got := flows[1].Stages; len(got) != 2 || got[0] != Recaptcha || got[1] != Dummy {
		t.Fatalf("unexpected resolved stages: %v", got)
	}

	if _, err := r.ResolveFlows([][]string{{Dummy}, {"m.login.unknown"}}); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
	if _, err := r.ResolveFlows([][]string{{Dummy}, {}}); !errors.Is(err, ErrEmptyFlow) {
		t.Fatalf("expected ErrEmptyFlow, got %v", err)
	}
	if _, err := r.ResolveFlows(nil); err == nil {
		t.Fatal("expected error for no flows")
	}
}

func TestParamsUnionOverAllFlows(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(DummyVerifier{})
	_ = r.Register(paramVerifier{id: Recaptcha, params: map[string]string{"public_key": "pk"}})
	_ = r.Register(paramVerifier{id: OAuth2Stage, params: map[string]string{"client_id": "c"}})

	flows, err := r.ResolveFlows([][]string{{Dummy}, {Recaptcha}, {OAuth2Stage}})
	if err != nil {
		t.Fatalf("ResolveFlows failed: %v", err)
	}

	params := r.Params(flows)
	if len(params) != 2 {
		t.Fatalf("expected params for 2 stages, got %v", params)
	}
	if params[Recaptcha]["public_key"] != "pk" || params[OAuth2Stage]["client_id"] != "c" {
		t.Fatalf("unexpected params: %v", params)
	}
	if _, ok := params[Dummy]; ok {
		t.Fatal("stages without params must be omitted")
	}

	got := SortedStages(flows)
	if len(got) != 3 || got[0] != Dummy {
		t.Fatalf("unexpected sorted stages: %v", got)
	}
}
