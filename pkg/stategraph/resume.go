package stategraph

import (
	"encoding/json"
	"fmt"

	"github.com/stategraph/stategraph/pkg/stategraph/checkpoint"
	"github.com/stategraph/stategraph/pkg/stategraph/state"
)

// Resume continues a run from its latest checkpoint in store.
//
// The merged state, pending frontier, and join-barrier arrivals are
// restored exactly as persisted, so the run picks up where it stopped:
// completed nodes do not re-execute. Checkpointing stays enabled and
// step numbering continues from the loaded ordinal.
//
// Resuming a run whose final checkpoint has an empty frontier returns
// the finished result without executing anything.
func (p *Plan) Resume(ctx Context, store checkpoint.Store, runID string, opts ...RunOption) (*Result, error) {
	if ctx == nil {
		return &Result{Status: Failed}, ErrNilContext
	}
	if runID == "" {
		return &Result{Status: Failed}, ErrRunIDRequired
	}

	data, err := store.Latest(runID)
	if err != nil {
		return &Result{RunID: runID, Status: Failed}, fmt.Errorf("loading latest checkpoint for run %q: %w", runID, err)
	}

	return p.resumeFrom(ctx, store, runID, data, opts)
}

// ResumeFromStep continues a run from a specific checkpoint ordinal
// rather than the latest one, rewinding to any persisted step.
//
// Combined with WithRunID this branches the history: load step n of one
// run, execute forward under a fresh run ID, and the original run's
// later checkpoints stay untouched. Without WithRunID, checkpoints
// after step are overwritten as the resumed run advances.
func (p *Plan) ResumeFromStep(ctx Context, store checkpoint.Store, runID string, step int, opts ...RunOption) (*Result, error) {
	if ctx == nil {
		return &Result{Status: Failed}, ErrNilContext
	}
	if runID == "" {
		return &Result{Status: Failed}, ErrRunIDRequired
	}

	data, err := store.Load(runID, step)
	if err != nil {
		return &Result{RunID: runID, Status: Failed}, fmt.Errorf("loading checkpoint %d for run %q: %w", step, runID, err)
	}

	return p.resumeFrom(ctx, store, runID, data, opts)
}

// resumeFrom rebuilds scheduler state from checkpoint bytes and
// re-enters the run loop.
func (p *Plan) resumeFrom(ctx Context, store checkpoint.Store, runID string, data []byte, opts []RunOption) (*Result, error) {
	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return &Result{RunID: runID, Status: Failed}, fmt.Errorf("decoding checkpoint for run %q: %w", runID, err)
	}
	if cp.Version != checkpoint.Version {
		return &Result{RunID: runID, Status: Failed},
			fmt.Errorf("%w: got %d, want %d", ErrCheckpointVersion, cp.Version, checkpoint.Version)
	}

	var st state.State
	if err := json.Unmarshal(cp.State, &st); err != nil {
		return &Result{RunID: runID, Status: Failed}, fmt.Errorf("decoding state for run %q: %w", runID, err)
	}

	// Caller options come last so they can override the restored run ID
	// (branching) or swap collaborators.
	cfg := defaultRunConfig()
	cfg.runID = cp.RunID
	cfg.store = store
	cfg.startStep = cp.Step
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cp.Frontier) == 0 {
		return &Result{RunID: cfg.runID, Status: Succeeded, State: st}, nil
	}

	frontier := make([]string, len(cp.Frontier))
	copy(frontier, cp.Frontier)
	for _, id := range frontier {
		if _, ok := p.nodes[id]; !ok {
			return &Result{RunID: cfg.runID, Status: Failed},
				fmt.Errorf("%w: checkpoint frontier references %q", ErrNodeNotFound, id)
		}
	}

	return p.run(ctx, cfg, st, frontier, expandArrivals(cp.Arrivals))
}

// expandArrivals converts the checkpoint wire shape back to the
// scheduler's barrier bookkeeping.
func expandArrivals(arrivals map[string][]string) map[string]map[string]bool {
	if len(arrivals) == 0 {
		return nil
	}
	out := make(map[string]map[string]bool, len(arrivals))
	for node, preds := range arrivals {
		set := make(map[string]bool, len(preds))
		for _, pred := range preds {
			set[pred] = true
		}
		out[node] = set
	}
	return out
}
