package stategraph

import (
	"time"

	"github.com/stategraph/stategraph/pkg/stategraph/state"
)

// Status is the lifecycle state of a run.
type Status int

// Run statuses.
const (
	// Pending means the run has not started.
	Pending Status = iota

	// Running means the run is in progress.
	Running

	// Succeeded means the run reached a finish point or END.
	Succeeded

	// Failed means a node, router, or merge error ended the run.
	Failed

	// Aborted means the run hit its iteration ceiling or was cancelled.
	Aborted
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Step records one node execution within a run trace.
type Step struct {
	// Round is the scheduling round, starting at 1.
	Round int

	// Node is the node that executed.
	Node string

	// Fields are the state fields the node's update touched, sorted.
	Fields []string

	// Duration is how long the node ran.
	Duration time.Duration

	// Err is the node's error, if it failed.
	Err error
}

// Result is the outcome of a run.
//
// On failure the scheduler still returns a Result alongside the error:
// State holds everything merged before the failure and Trace shows how
// far the run got, which is usually the fastest way to see what went
// wrong.
type Result struct {
	// RunID identifies the run.
	RunID string

	// Status is the terminal status.
	Status Status

	// State is the final (or partially merged, on failure) state.
	State state.State

	// Trace lists every node execution in completion-processing order.
	Trace []Step

	// Rounds is how many scheduling rounds ran.
	Rounds int

	// Duration is the total wall-clock time of the run.
	Duration time.Duration
}
