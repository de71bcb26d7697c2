package stategraph

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors, surfaced by Compile before any node runs.
var (
	// ErrNoEntryPoint indicates no entry point was set.
	ErrNoEntryPoint = errors.New("no entry point set")

	// ErrEntryNotFound indicates the entry point names an unregistered node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references an unregistered node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoPathToEnd indicates a node cannot reach END or a finish point.
	ErrNoPathToEnd = errors.New("no path to end")
)

// Run-time sentinels. Wrap typed errors; match with errors.Is.
var (
	// ErrNilContext indicates a run was started with a nil context.
	ErrNilContext = errors.New("nil context")

	// ErrIterationLimit indicates the run exceeded its round ceiling.
	ErrIterationLimit = errors.New("iteration limit exceeded")

	// ErrNodeTimeout indicates a node exceeded its per-node timeout.
	ErrNodeTimeout = errors.New("node timed out")

	// ErrJoinUnsatisfied indicates every frontier node is a join still
	// waiting on predecessors that can no longer arrive.
	ErrJoinUnsatisfied = errors.New("join barrier cannot be satisfied")

	// ErrRunIDRequired indicates a resume was attempted without a run ID.
	ErrRunIDRequired = errors.New("run id required")

	// ErrCheckpointVersion indicates a checkpoint was written by an
	// incompatible format version.
	ErrCheckpointVersion = errors.New("unsupported checkpoint version")
)

// NodeError indicates a node function failed during execution.
type NodeError struct {
	// Node is the ID of the node that failed.
	Node string

	// Round is the scheduling round in which the failure occurred.
	Round int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed (round %d): %v", e.Node, e.Round, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError indicates a node function panicked during execution.
type PanicError struct {
	// Node is the ID of the node that panicked.
	Node string

	// Value is the recovered panic value.
	Value any

	// Stack is the goroutine stack at the point of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %q panicked: %v", e.Node, e.Value)
}

// RouterError indicates a conditional router misbehaved: it returned an
// empty label or a label absent from the edge's label map. Routers must
// be total; there is no silent default.
type RouterError struct {
	// Node is the node whose router failed.
	Node string

	// Label is the label the router returned.
	Label string

	// Labels are the labels the edge's map recognizes, sorted.
	Labels []string
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("router for node %q returned an empty label", e.Node)
	}
	return fmt.Sprintf("router for node %q returned unmapped label %q (known: %s)",
		e.Node, e.Label, strings.Join(e.Labels, ", "))
}

// MergeConflictError indicates sibling nodes in the same round wrote
// overlapping state fields. Always fatal unless the run opted into
// last-write-wins via WithLastWriteWins.
type MergeConflictError struct {
	// Round is the round whose merge failed.
	Round int

	// Nodes are the nodes whose updates were merged, in branch order.
	Nodes []string

	// Fields are the overlapping field names, sorted.
	Fields []string

	// Err is the underlying merge error.
	Err error
}

// Error implements the error interface.
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict in round %d between nodes [%s]: fields [%s]",
		e.Round, strings.Join(e.Nodes, ", "), strings.Join(e.Fields, ", "))
}

// Unwrap returns the underlying error.
func (e *MergeConflictError) Unwrap() error {
	return e.Err
}

// IterationLimitError indicates the run was aborted after exceeding the
// global round ceiling, most often a cycle whose exit condition never
// fires.
type IterationLimitError struct {
	// Limit is the configured ceiling.
	Limit int

	// Frontier is the pending work at the moment of the abort.
	Frontier []string
}

// Error implements the error interface.
func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("aborted after %d rounds with pending nodes [%s]",
		e.Limit, strings.Join(e.Frontier, ", "))
}

// Unwrap returns ErrIterationLimit.
func (e *IterationLimitError) Unwrap() error {
	return ErrIterationLimit
}

// CancellationError indicates the run's context was cancelled between
// rounds. In-flight node failures caused by cancellation surface as
// *NodeError wrapping the context error instead.
type CancellationError struct {
	// Rounds is how many rounds completed before the cancellation.
	Rounds int

	// Cause is the context error.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("run cancelled after %d rounds: %v", e.Rounds, e.Cause)
}

// Unwrap returns the context error.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// CheckpointError indicates a checkpoint operation failed during a run.
// Checkpoint failures are non-fatal by default; see
// WithCheckpointFailureFatal.
type CheckpointError struct {
	// RunID is the run whose checkpoint failed.
	RunID string

	// Step is the checkpoint ordinal.
	Step int

	// Op is the operation that failed ("save" or "load").
	Op string

	// Err is the underlying store error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s failed for run %q at step %d: %v", e.Op, e.RunID, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// RunError is the error returned by Invoke. It carries the terminal
// status, the partially merged state at the moment of failure, and the
// originating error, which remains matchable through Unwrap.
type RunError struct {
	// Status is the terminal run status (Failed or Aborted).
	Status Status

	// Node is the node where the failure originated, if any.
	Node string

	// State is the partially merged state at the moment of failure.
	State map[string]any

	// Err is the originating error.
	Err error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("run %s at node %q: %v", e.Status, e.Node, e.Err)
	}
	return fmt.Sprintf("run %s: %v", e.Status, e.Err)
}

// Unwrap returns the originating error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// failingNode extracts the node ID an error originated at, if any.
func failingNode(err error) string {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.Node
	}
	var routerErr *RouterError
	if errors.As(err, &routerErr) {
		return routerErr.Node
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr.Node
	}
	return ""
}
