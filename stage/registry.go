package stage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownStage is returned when a flow references a stage with no verifier.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrEmptyFlow is returned for a flow with no stages.
	ErrEmptyFlow = errors.New("flow has no stages")
	// ErrDuplicateStage is returned when two verifiers claim one stage id.
	ErrDuplicateStage = errors.New("stage already registered")
	// ErrRegistryFrozen is returned by Register after Freeze.
	ErrRegistryFrozen = errors.New("stage registry frozen")
)

const maxStageIDLen = 255

// Flow is one acceptable ordered set of stages.
type Flow struct {
	Stages []string
}

// Registry maps stage ids to verifiers.
type Registry struct {
	mu        sync.RWMutex
	verifiers map[string]Verifier
	order     []string
	frozen    bool
}

func NewRegistry() *Registry {
	return &Registry{
		verifiers: make(map[string]Verifier),
	}
}

// Register adds v under v.Stage(). Must be called before [Registry.Freeze].
func (r *Registry) Register(v Verifier) error {
	if v == nil {
		return errors.New("nil verifier")
	}
	id := v.Stage()
	if err := ValidateStageID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, exists := r.verifiers[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, id)
	}

	r.verifiers[id] = v
	r.order = append(r.order, id)
	return nil
}

// Freeze prevents further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the verifier for a stage id.
func (r *Registry) Lookup(id string) (Verifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verifiers[id]
	return v, ok
}

// Stages returns registered stage ids in registration order.
func (r *Registry) Stages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ResolveFlows checks every configured flow against the registered
// verifiers. Duplicate stages within a flow are collapsed.
func (r *Registry) ResolveFlows(flows [][]string) ([]Flow, error) {
	if len(flows) == 0 {
		return nil, errors.New("at least one flow must be configured")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Flow, 0, len(flows))
	for i, stages := range flows {
		if len(stages) == 0 {
			return nil, fmt.Errorf("%w: flow %d", ErrEmptyFlow, i)
		}
		seen := make(map[string]struct{}, len(stages))
		resolved := make([]string, 0, len(stages))
		for _, id := range stages {
			if _, ok := r.verifiers[id]; !ok {
				return nil, fmt.Errorf("%w: %q in flow %d", ErrUnknownStage, id, i)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			resolved = append(resolved, id)
		}
		out = append(out, Flow{Stages: resolved})
	}

	return out, nil
}

// Params returns the union of params for every stage referenced by flows.
// Stages without params are omitted.
func (r *Registry) Params(flows []Flow) map[string]map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]map[string]string)
	for _, flow := range flows {
		for _, id := range flow.Stages {
			if _, done := out[id]; done {
				continue
			}
			v, ok := r.verifiers[id]
			if !ok {
				continue
			}
			params := v.Params()
			if len(params) == 0 {
				continue
			}
			copied := make(map[string]string, len(params))
			for k, val := range params {
				copied[k] = val
			}
			out[id] = copied
		}
	}

	return out
}

// ValidateStageID rejects ids that cannot be stored in an interactive session.
func ValidateStageID(id string) error {
	if id == "" {
		return errors.New("stage id cannot be empty")
	}
	if len(id) > maxStageIDLen {
		return errors.New("stage id too long")
	}
	if strings.ContainsAny(id, ", \t\n") {
		return fmt.Errorf("stage id %q contains a separator", id)
	}
	return nil
}

// FlowStages flattens flows into their stage id lists.
func FlowStages(flows []Flow) [][]string {
	out := make([][]string, len(flows))
	for i, f := range flows {
		out[i] = append([]string(nil), f.Stages...)
	}
	return out
}

// SortedStages returns the distinct stage ids used by flows, sorted.
func SortedStages(flows []Flow) []string {
	set := make(map[string]struct{})
	for _, f := range flows {
		for _, s := range f.Stages {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
