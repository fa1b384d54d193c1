package hsAuth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MrEthical07/hsAuth/interactive"
	internalflows "github.com/MrEthical07/hsAuth/internal/flows"
)

// Flows returns the discovery payload: every configured flow and the
// params of the stages they reference, without a session.
func (e *Engine) Flows() AuthenticationFlows {
	return e.authenticationFlows("", nil)
}

func (e *Engine) authenticationFlows(sessionID string, completed []string) AuthenticationFlows {
	flows := make([]FlowInfo, 0, len(e.flowStages))
	for _, f := range e.flowStages {
		flows = append(flows, FlowInfo{Stages: append([]string(nil), f...)})
	}
	params := make(map[string]map[string]string, len(e.params))
	for stageID, p := range e.params {
		cp := make(map[string]string, len(p))
		for k, v := range p {
			cp[k] = v
		}
		params[stageID] = cp
	}
	if completed == nil {
		completed = []string{}
	}
	return AuthenticationFlows{
		Completed: completed,
		Flows:     flows,
		Params:    params,
		Session:   sessionID,
	}
}

// ValidateInteractive advances one interactive-auth step. It returns nil
// once a configured flow is satisfied, in which case the session no longer
// exists and the caller performs its privileged action. Otherwise it returns
// an *InteractiveError carrying the re-prompt, an *Error with kind
// M_NOT_FOUND for an unknown session, or a store fault.
//
// An attempt without a session id always creates a session and re-prompts;
// any proof attached to that first call is ignored.
func (e *Engine) ValidateInteractive(ctx context.Context, attempt Attempt) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	proof := attempt.Proof
	proof.Type = attempt.Type
	proof.Session = attempt.Session
	if proof.RemoteAddr == "" {
		proof.RemoteAddr = clientIPFromContext(ctx)
	}

	res := e.flows.ValidateInteractive(ctx, attempt.Session, attempt.Type, proof)

	switch res.Outcome {
	case internalflows.InteractiveSatisfied:
		return nil
	case internalflows.InteractiveCreated, internalflows.InteractivePending:
		return &InteractiveError{Flows: e.authenticationFlows(res.SessionID, res.Completed)}
	case internalflows.InteractiveStageFailed:
		payload := e.authenticationFlows(res.SessionID, res.Completed)
		payload.Errcode = ErrcodeForbidden
		payload.Error = ErrWrongAuthentication.Error()
		return &InteractiveError{Flows: payload}
	case internalflows.InteractiveNotFound:
		return newError(ErrcodeNotFound, "Unknown session.", ErrSessionNotFound)
	}

	if res.Err == nil {
		res.Err = errors.New("interactive flow returned no outcome")
	}
	if errors.Is(res.Err, interactive.ErrSessionCorrupt) {
		e.logger.Error("interactive session corrupt", zap.String("session_id", attempt.Session), zap.Error(res.Err))
	}
	return e.storeFault("validate interactive", res.Err)
}
