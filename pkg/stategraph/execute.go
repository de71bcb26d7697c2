package stategraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stategraph/stategraph/pkg/stategraph/checkpoint"
	"github.com/stategraph/stategraph/pkg/stategraph/event"
	"github.com/stategraph/stategraph/pkg/stategraph/observability"
	"github.com/stategraph/stategraph/pkg/stategraph/state"
)

// Invoke runs the graph to completion and returns the final state as a
// plain map. It is the convenience entry point; use Execute when you
// want the full Result with its trace.
//
// On failure the returned error is a *RunError carrying the terminal
// status, the originating node, and the partially merged state. The
// underlying node, router, or merge error stays matchable through
// errors.Is and errors.As.
func (p *Plan) Invoke(ctx Context, seed map[string]any, opts ...RunOption) (map[string]any, error) {
	res, err := p.Execute(ctx, seed, opts...)
	if err != nil {
		return res.State.Map(), &RunError{
			Status: res.Status,
			Node:   failingNode(err),
			State:  res.State.Map(),
			Err:    err,
		}
	}
	return res.State.Map(), nil
}

// Execute runs the graph from its entry point against the seed state.
//
// Execution proceeds in rounds: every node in the current frontier is
// dispatched concurrently, their partial updates are merged in declared
// branch order, routers pick successors against the post-merge state,
// and the next frontier forms. The run ends when the frontier drains
// (Succeeded), a node, router, or merge fails (Failed), or the round
// ceiling or cancellation hits (Aborted).
//
// A Result is returned even on failure, carrying the partial state and
// the trace of everything that ran.
func (p *Plan) Execute(ctx Context, seed map[string]any, opts ...RunOption) (*Result, error) {
	if ctx == nil {
		return &Result{Status: Failed}, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return p.run(ctx, cfg, state.FromMap(seed), []string{p.entryPoint}, nil)
}

// nodeResult is the outcome of one node dispatch.
type nodeResult struct {
	node     string
	update   state.Update
	err      error
	duration time.Duration
}

// run is the scheduler loop shared by Execute and Resume.
func (p *Plan) run(ctx Context, cfg *runConfig, st state.State, frontier []string, arrivals map[string]map[string]bool) (result *Result, retErr error) {
	ec := asExecution(ctx)
	if cfg.runID != "" && cfg.runID != ec.runID {
		pinned := *ec
		pinned.runID = cfg.runID
		ec = &pinned
	}
	runID := ec.runID
	logger := ec.logger

	runCtx, runSpan := cfg.spans.StartRunSpan(ec.Context, runID)
	scoped := *ec
	scoped.Context = runCtx
	ec = &scoped

	if arrivals == nil {
		arrivals = make(map[string]map[string]bool)
	}

	start := time.Now()
	round := 0
	step := cfg.startStep
	result = &Result{RunID: runID, Status: Running, State: st}

	observability.LogRunStart(logger, runID, st.Len())
	emit(cfg, event.Event{Type: event.RunStarted, RunID: runID, Time: time.Now()})

	defer func() {
		result.Duration = time.Since(start)
		result.Rounds = round
		ms := float64(result.Duration.Milliseconds())
		cfg.metrics.RecordRun(ec, result.Status.String(), result.Duration)
		cfg.spans.EndSpanWithError(runSpan, retErr)
		emit(cfg, event.Event{
			Type:   event.RunFinished,
			RunID:  runID,
			Status: result.Status.String(),
			Err:    retErr,
			Time:   time.Now(),
		})
		if retErr != nil {
			observability.LogRunEnd(logger, runID, result.Status.String(), retErr, ms, failingNode(retErr))
		} else {
			observability.LogRunComplete(logger, runID, ms, len(result.Trace), round)
		}
	}()

	for len(frontier) > 0 {
		if err := ec.Err(); err != nil {
			result.Status = Aborted
			return result, &CancellationError{Rounds: round, Cause: err}
		}
		if round >= cfg.maxIterations {
			result.Status = Aborted
			return result, &IterationLimitError{Limit: cfg.maxIterations, Frontier: frontier}
		}
		round++

		ready, waiting := p.partition(frontier, arrivals)
		if len(ready) == 0 {
			result.Status = Failed
			return result, fmt.Errorf("%w: joins still waiting: %s", ErrJoinUnsatisfied, strings.Join(waiting, ", "))
		}
		// Dispatched joins consume their arrivals so a loop re-entering
		// the join waits on a fresh barrier.
		for _, id := range ready {
			delete(arrivals, id)
		}

		observability.LogRoundStart(logger, round, ready)
		results := p.dispatch(ec, cfg, round, ready, st)

		// Fold outcomes in declared branch order, the documented merge
		// tiebreak. Failures either redirect through an ErrorLabel
		// binding or end the run.
		ordered := make([]string, len(ready))
		copy(ordered, ready)
		sort.Slice(ordered, func(i, j int) bool {
			return p.branchIndex[ordered[i]] < p.branchIndex[ordered[j]]
		})

		var (
			updates  []state.Update
			merged   []string
			failures []any
			routed   = make(map[string]string)
		)
		for _, id := range ordered {
			r := results[id]
			fields := updateKeys(r.update)
			result.Trace = append(result.Trace, Step{
				Round:    round,
				Node:     id,
				Fields:   fields,
				Duration: r.duration,
				Err:      r.err,
			})
			cfg.metrics.RecordNodeExecution(ec, id, r.duration, r.err)

			if r.err != nil {
				emit(cfg, event.Event{
					Type: event.NodeErrored, RunID: runID, Node: id, Round: round,
					Err: r.err, Time: time.Now(),
				})
				if target, ok := p.errorRoute(id); ok {
					failures = append(failures, map[string]any{
						"node":  id,
						"error": r.err.Error(),
					})
					merged = append(merged, id)
					routed[id] = target
					continue
				}
				if ec.Err() != nil {
					result.Status = Aborted
				} else {
					result.Status = Failed
				}
				return result, r.err
			}

			emit(cfg, event.Event{
				Type: event.NodeFinished, RunID: runID, Node: id, Round: round,
				Fields: fields, Time: time.Now(),
			})
			if len(r.update) > 0 {
				updates = append(updates, r.update)
				merged = append(merged, id)
			}
		}

		// Every routed failure of the round lands in one update under
		// ErrorField, so simultaneous error routes never conflict with
		// each other.
		if len(failures) > 0 {
			updates = append(updates, state.Update{ErrorField: failures})
		}

		next, err := st.Merge(cfg.mergePolicy, updates...)
		if err != nil {
			var conflict *state.ConflictError
			if errors.As(err, &conflict) {
				result.Status = Failed
				return result, &MergeConflictError{Round: round, Nodes: merged, Fields: conflict.Fields, Err: err}
			}
			result.Status = Failed
			return result, err
		}
		st = next
		result.State = st
		cfg.metrics.RecordMerge(ec, round, len(updates))
		observability.LogMerge(logger, round, merged, st.Len())
		emit(cfg, event.Event{
			Type: event.MergeCompleted, RunID: runID, Round: round,
			Fields: mergedFields(updates), Time: time.Now(),
		})

		frontier, err = p.advance(ec, ready, waiting, routed, results, st, arrivals)
		if err != nil {
			result.Status = Failed
			return result, err
		}

		if cfg.store != nil {
			step++
			if err := p.saveCheckpoint(ec, cfg, runID, step, ready, st, frontier, arrivals); err != nil {
				result.Status = Failed
				return result, err
			}
		}
	}

	result.Status = Succeeded
	return result, nil
}

// partition splits the frontier into nodes ready to dispatch and joins
// still waiting on predecessors.
func (p *Plan) partition(frontier []string, arrivals map[string]map[string]bool) (ready, waiting []string) {
	for _, id := range frontier {
		expected, isJoin := p.joins[id]
		if !isJoin {
			ready = append(ready, id)
			continue
		}
		got := arrivals[id]
		complete := true
		for _, pred := range expected {
			if !got[pred] {
				complete = false
				break
			}
		}
		if complete {
			ready = append(ready, id)
		} else {
			waiting = append(waiting, id)
		}
	}
	return ready, waiting
}

// dispatch runs every ready node concurrently against the same
// pre-round state and collects their outcomes.
func (p *Plan) dispatch(ec *executionContext, cfg *runConfig, round int, ready []string, st state.State) map[string]nodeResult {
	results := make(chan nodeResult, len(ready))
	var wg sync.WaitGroup

	for _, id := range ready {
		// Concurrent siblings each get their own deep copy: a node
		// mutating a nested value must not race another branch.
		branch := st
		if len(ready) > 1 {
			snap, err := st.Snapshot()
			if err != nil {
				ec.logger.Warn("state snapshot failed, branches share state", "node_id", id, "error", err)
			} else {
				branch = snap
			}
		}
		wg.Add(1)
		go func(id string, branch state.State) {
			defer wg.Done()
			results <- p.executeNode(ec, cfg, round, id, branch)
		}(id, branch)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]nodeResult, len(ready))
	for r := range results {
		out[r.node] = r
	}
	return out
}

// executeNode runs one node with panic recovery, span bracketing, and
// the optional per-node timeout.
func (p *Plan) executeNode(ec *executionContext, cfg *runConfig, round int, id string, st state.State) nodeResult {
	res := nodeResult{node: id}
	logger := observability.EnrichLogger(ec.logger, ec.runID, id)

	observability.LogNodeStart(logger, id)
	emit(cfg, event.Event{Type: event.NodeStarted, RunID: ec.runID, Node: id, Round: round, Time: time.Now()})

	base, span := cfg.spans.StartNodeSpan(ec.Context, id, round)
	cancel := func() {}
	if cfg.nodeTimeout > 0 {
		base, cancel = context.WithTimeout(base, cfg.nodeTimeout)
	}
	defer cancel()

	nodeCtx := ec.forNode(base, id, logger)
	start := time.Now()

	type outcome struct {
		update state.Update
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &PanicError{Node: id, Value: r, Stack: string(debug.Stack())}}
			}
		}()
		update, err := p.nodes[id](nodeCtx, st)
		done <- outcome{update: update, err: err}
	}()

	var out outcome
	if cfg.nodeTimeout > 0 {
		select {
		case out = <-done:
		case <-base.Done():
			// The dispatch goroutine is abandoned; node authors must
			// honor their context for timeouts to reclaim the worker.
			// An outcome racing the wakeup still wins.
			select {
			case out = <-done:
			default:
				out = outcome{err: base.Err()}
			}
		}
	} else {
		// Without a timeout the node owns its exit: cancellation
		// reaches it through its context, and work it completed before
		// observing the cancellation is always collected.
		out = <-done
	}
	if out.err != nil && cfg.nodeTimeout > 0 && ec.Err() == nil && errors.Is(out.err, context.DeadlineExceeded) {
		out.err = fmt.Errorf("%w after %s", ErrNodeTimeout, cfg.nodeTimeout)
	}

	res.duration = time.Since(start)
	res.update = out.update

	if out.err != nil {
		var panicErr *PanicError
		if errors.As(out.err, &panicErr) {
			res.err = out.err
		} else {
			res.err = &NodeError{Node: id, Round: round, Err: out.err}
		}
		observability.LogNodeError(logger, id, res.err)
		cfg.spans.EndSpanWithError(span, res.err)
		return res
	}

	observability.LogNodeComplete(logger, id, float64(res.duration.Milliseconds()), updateKeys(out.update))
	cfg.spans.EndSpanWithError(span, nil)
	return res
}

// advance computes the next frontier: waiting joins carry over, each
// completed node contributes its successors against the post-merge
// state, and join arrivals are recorded for the barrier.
func (p *Plan) advance(ec *executionContext, ready, waiting []string, routed map[string]string, results map[string]nodeResult, st state.State, arrivals map[string]map[string]bool) ([]string, error) {
	next := make([]string, 0, len(waiting)+len(ready))
	inNext := make(map[string]bool, len(waiting))
	for _, id := range waiting {
		next = append(next, id)
		inNext[id] = true
	}

	// arrive records a barrier-counted arrival over an unconditional
	// edge; schedule enqueues without touching the barrier.
	schedule := func(target string) {
		if !inNext[target] {
			inNext[target] = true
			next = append(next, target)
		}
	}
	arrive := func(from, target string) {
		if _, isJoin := p.joins[target]; isJoin {
			got := arrivals[target]
			if got == nil {
				got = make(map[string]bool)
				arrivals[target] = got
			}
			got[from] = true
		}
		schedule(target)
	}
	// Routed arrivals bypass the barrier: mark every expected
	// predecessor so the join dispatches next round.
	force := func(target string) {
		if expected, isJoin := p.joins[target]; isJoin {
			got := arrivals[target]
			if got == nil {
				got = make(map[string]bool)
				arrivals[target] = got
			}
			for _, pred := range expected {
				got[pred] = true
			}
		}
		schedule(target)
	}

	for _, id := range ready {
		if target, ok := routed[id]; ok {
			if target != END {
				force(target)
			}
			continue
		}
		if results[id].err != nil {
			continue
		}
		if p.finish[id] {
			continue
		}
		if cond, ok := p.conditionals[id]; ok {
			label := cond.router(ec.forNode(ec.Context, id, ec.logger), st)
			if label == "" {
				return nil, &RouterError{Node: id, Labels: p.Labels(id)}
			}
			target, ok := cond.labels[label]
			if !ok {
				return nil, &RouterError{Node: id, Label: label, Labels: p.Labels(id)}
			}
			if target != END {
				force(target)
			}
			continue
		}
		targets := p.edges[id]
		if len(targets) == 0 {
			// No edges and not a finish point: terminal by default.
			ec.logger.Debug("node has no successors, treating as terminal", "node_id", id)
			continue
		}
		for _, target := range targets {
			if target != END {
				arrive(id, target)
			}
		}
	}

	return next, nil
}

// saveCheckpoint persists the post-merge snapshot. Failures are logged
// and skipped unless the run opted into fatal checkpoint errors.
func (p *Plan) saveCheckpoint(ec *executionContext, cfg *runConfig, runID string, step int, executed []string, st state.State, frontier []string, arrivals map[string]map[string]bool) error {
	fail := func(op string, err error) error {
		if cfg.checkpointFatal {
			return &CheckpointError{RunID: runID, Step: step, Op: op, Err: err}
		}
		observability.LogCheckpointError(ec.logger, step, op, err)
		return nil
	}

	stateJSON, err := json.Marshal(st)
	if err != nil {
		return fail("marshal", err)
	}

	cp := checkpoint.New(runID, step, strings.Join(executed, "+"), stateJSON, frontier).
		WithArrivals(flattenArrivals(arrivals))
	data, err := cp.Marshal()
	if err != nil {
		return fail("marshal", err)
	}

	if err := cfg.store.Save(runID, step, data); err != nil {
		return fail("save", err)
	}

	cfg.metrics.RecordCheckpoint(ec, step, int64(len(data)))
	observability.LogCheckpoint(ec.logger, step, len(data))
	emit(cfg, event.Event{Type: event.CheckpointSaved, RunID: runID, Round: step, Time: time.Now()})
	return nil
}

// emit publishes a lifecycle event when a sink is configured.
func emit(cfg *runConfig, evt event.Event) {
	if cfg.sink != nil {
		cfg.sink.Emit(evt)
	}
}

// updateKeys returns an update's field names, sorted.
func updateKeys(u state.Update) []string {
	if len(u) == 0 {
		return nil
	}
	keys := make([]string, 0, len(u))
	for k := range u {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mergedFields returns the union of field names across updates, sorted.
func mergedFields(updates []state.Update) []string {
	seen := make(map[string]bool)
	for _, u := range updates {
		for k := range u {
			seen[k] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// flattenArrivals converts the barrier bookkeeping to the checkpoint
// wire shape: predecessor lists, sorted.
func flattenArrivals(arrivals map[string]map[string]bool) map[string][]string {
	if len(arrivals) == 0 {
		return nil
	}
	out := make(map[string][]string, len(arrivals))
	for node, preds := range arrivals {
		if len(preds) == 0 {
			continue
		}
		list := make([]string, 0, len(preds))
		for pred := range preds {
			list = append(list, pred)
		}
		sort.Strings(list)
		out[node] = list
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
