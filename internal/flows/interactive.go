package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/hsAuth/interactive"
	"github.com/MrEthical07/hsAuth/stage"
)

// InteractiveOutcome classifies one ValidateInteractive step.
type InteractiveOutcome int

const (
	// InteractiveCreated: a fresh session was minted; the attempt was not evaluated.
	InteractiveCreated InteractiveOutcome = iota + 1
	// InteractiveNotFound: the session id is unknown, expired or already satisfied.
	InteractiveNotFound
	// InteractiveStageFailed: the stage is unknown or its proof was rejected.
	InteractiveStageFailed
	// InteractivePending: the stage was recorded but no flow is satisfied yet.
	InteractivePending
	// InteractiveSatisfied: a flow is complete and the session is gone.
	InteractiveSatisfied
)

// InteractiveResult carries the session progress needed for a re-prompt.
type InteractiveResult struct {
	Outcome   InteractiveOutcome
	SessionID string
	Completed []string
	Err       error
}

type InteractiveSessionStore interface {
	Create(ctx context.Context, ttl time.Duration) (*interactive.Session, error)
	Get(ctx context.Context, sessionID string) (*interactive.Session, error)
	Complete(ctx context.Context, sessionID, stageID string, flows [][]string) (*interactive.Session, bool, error)
}

type InteractiveMetrics struct {
	SessionCreated int
	StageSuccess   int
	StageFailure   int
	Satisfied      int
}

type InteractiveEvents struct {
	SessionCreated string
	StageCompleted string
	StageFailed    string
	Satisfied      string
}

// InteractiveDeps captures the interactive-auth state machine dependencies.
type InteractiveDeps struct {
	Store      InteractiveSessionStore
	SessionTTL time.Duration
	Flows      [][]string
	Lookup     func(stageID string) (stage.Verifier, bool)

	Hooks   Hooks
	Metrics InteractiveMetrics
	Events  InteractiveEvents
}

// RunValidateInteractive advances the session named by attempt.Session by
// one stage. A blank or whitespace-only session id always yields
// InteractiveCreated without evaluating the attached proof, so the id
// round-trips before any stage.
func RunValidateInteractive(ctx context.Context, sessionID, stageID string, proof stage.Proof, deps InteractiveDeps) InteractiveResult {
	hooks := deps.Hooks.withDefaults()

	if strings.TrimSpace(sessionID) == "" {
		s, err := deps.Store.Create(ctx, deps.SessionTTL)
		if err != nil {
			return InteractiveResult{Err: err}
		}
		hooks.MetricInc(deps.Metrics.SessionCreated)
		hooks.EmitAudit(ctx, deps.Events.SessionCreated, true, "", "", s.ID, nil, nil)
		return InteractiveResult{
			Outcome:   InteractiveCreated,
			SessionID: s.ID,
			Completed: []string{},
		}
	}

	current, err := deps.Store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, interactive.ErrSessionNotFound) {
			return InteractiveResult{Outcome: InteractiveNotFound, SessionID: sessionID, Err: err}
		}
		return InteractiveResult{Err: err}
	}

	verifier, ok := deps.Lookup(stageID)
	if !ok || !verifier.Authenticate(ctx, proof) {
		hooks.MetricInc(deps.Metrics.StageFailure)
		hooks.EmitAudit(ctx, deps.Events.StageFailed, false, proof.User, "", sessionID, nil, func() map[string]string {
			return map[string]string{"stage": stageID}
		})
		return InteractiveResult{
			Outcome:   InteractiveStageFailed,
			SessionID: sessionID,
			Completed: completedOf(current),
		}
	}

	// The verifier may have taken a while; Complete re-reads the session
	// atomically, so a concurrent satisfaction shows up as not found here.
	updated, satisfied, err := deps.Store.Complete(ctx, sessionID, stageID, deps.Flows)
	if err != nil {
		if errors.Is(err, interactive.ErrSessionNotFound) {
			return InteractiveResult{Outcome: InteractiveNotFound, SessionID: sessionID, Err: err}
		}
		return InteractiveResult{Err: err}
	}

	hooks.MetricInc(deps.Metrics.StageSuccess)
	hooks.EmitAudit(ctx, deps.Events.StageCompleted, true, proof.User, "", sessionID, nil, func() map[string]string {
		return map[string]string{"stage": stageID}
	})

	if satisfied {
		hooks.MetricInc(deps.Metrics.Satisfied)
		hooks.EmitAudit(ctx, deps.Events.Satisfied, true, proof.User, "", sessionID, nil, nil)
		return InteractiveResult{
			Outcome:   InteractiveSatisfied,
			SessionID: sessionID,
			Completed: completedOf(updated),
		}
	}

	return InteractiveResult{
		Outcome:   InteractivePending,
		SessionID: sessionID,
		Completed: completedOf(updated),
	}
}

func completedOf(s *interactive.Session) []string {
	if s == nil || len(s.Completed) == 0 {
		return []string{}
	}
	return append([]string(nil), s.Completed...)
}
