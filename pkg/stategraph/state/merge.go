package state

import (
	"fmt"
	"sort"
	"strings"
)

// MergePolicy controls what happens when two updates merged in the same
// round write the same field.
type MergePolicy int

const (
	// RejectConflicts treats overlapping writes as a fatal error.
	// This is the default: sibling branches must write disjoint fields.
	RejectConflicts MergePolicy = iota

	// LastWriteWins resolves overlapping writes deterministically:
	// updates are applied in the order given, so the last one wins.
	// The scheduler passes updates in declared branch order, never in
	// completion order, so the outcome does not depend on timing.
	LastWriteWins
)

// ConflictError reports overlapping writes from updates merged together.
// It is always fatal under RejectConflicts; the engine never silently
// picks a winner unless the graph author opted into LastWriteWins.
type ConflictError struct {
	// Fields are the overlapping field names, sorted.
	Fields []string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting writes to fields: %s", strings.Join(e.Fields, ", "))
}

// Merge applies the given partial updates to the record and returns a NEW
// State; the receiver is never modified. Updates are applied in order.
//
// Merge is commutative and associative over disjoint-key updates. Under
// RejectConflicts, two updates in the same call writing the same field
// return a *ConflictError. Overwriting a field already present in the
// receiver is not a conflict: that is an ordinary sequential update.
//
// Applying the same update twice is idempotent: the second application
// changes nothing.
func (s State) Merge(policy MergePolicy, updates ...Update) (State, error) {
	merged := make(map[string]any, len(s.fields)+len(updates))
	for k, v := range s.fields {
		merged[k] = v
	}

	if policy == RejectConflicts {
		if conflicts := overlappingKeys(updates); len(conflicts) > 0 {
			return State{}, &ConflictError{Fields: conflicts}
		}
	}

	for _, update := range updates {
		for k, v := range update {
			merged[k] = v
		}
	}

	return State{fields: merged}, nil
}

// Apply is shorthand for merging a single update, which can never
// conflict with itself.
func (s State) Apply(update Update) State {
	next, _ := s.Merge(RejectConflicts, update)
	return next
}

// overlappingKeys returns the sorted set of keys written by more than one
// update in the batch.
func overlappingKeys(updates []Update) []string {
	if len(updates) < 2 {
		return nil
	}

	seen := make(map[string]int)
	for _, update := range updates {
		for k := range update {
			seen[k]++
		}
	}

	var conflicts []string
	for k, n := range seen {
		if n > 1 {
			conflicts = append(conflicts, k)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}
