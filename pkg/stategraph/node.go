package stategraph

import "github.com/stategraph/stategraph/pkg/stategraph/state"

// END is the terminal marker.
// Use it as an edge target or router label target to end the run.
const END = "__end__"

// ErrorLabel is the reserved label a conditional label map may bind to
// route around a failure of the source node. When the node errors and
// its label map contains ErrorLabel, execution continues at that target
// instead of failing the run; the failure is recorded in the state under
// ErrorField.
const ErrorLabel = "__error__"

// ErrorField is the state field the scheduler writes when a failure is
// routed through ErrorLabel. Its value is a list of records, one per
// routed failure of the round, each a map with "node" and "error"
// entries. A later round's routed failures replace the list.
const ErrorField = "__error__"

// NodeFunc is the signature for all node functions.
//
// A node receives the execution context and a read-only view of the
// current state, and returns a partial update containing ONLY the fields
// it added or changed — never a wholesale replacement. Returning a nil
// or empty update is valid and means "nothing changed".
//
// Nodes must be stateless between invocations: everything they need
// arrives via the state record. Under fan-out, sibling nodes dispatched
// in the same round must write disjoint field sets.
//
// A node delegating to an unreliable external collaborator should guard
// the call with the retry package. The collaborator must be idempotent:
// no side effect of a failed attempt is assumed undone. It must report
// failure by returning an error, never a sentinel value.
//
// Example:
//
//	func fetch(ctx stategraph.Context, s state.State) (state.Update, error) {
//	    result, err := client.Lookup(ctx, s.String("query", ""))
//	    if err != nil {
//	        return nil, err
//	    }
//	    return state.Update{"result": result}, nil
//	}
type NodeFunc func(ctx Context, s state.State) (state.Update, error)

// RouterFunc selects the next hop after its node's update has been
// merged. It returns a label that the edge's label map resolves to a
// node or END.
//
// Routers must be pure (no side effects) and total over every state
// reachable at their position in the graph: returning a label absent
// from the label map is a fatal *RouterError at run time, never a
// silent default.
//
// Example:
//
//	func shouldRetry(ctx stategraph.Context, s state.State) string {
//	    if s.Float("score", 0) < 0.7 && s.Int("iterations", 0) < 3 {
//	        return "revise"
//	    }
//	    return "done"
//	}
type RouterFunc func(ctx Context, s state.State) string
