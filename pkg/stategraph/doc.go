// Package stategraph executes stateful directed-graph workflows.
//
// A workflow is a graph of named nodes wired by edges. Each node reads
// a shared state record and returns a partial update: only the fields
// it added or changed. Edges are unconditional (always taken, fanning
// out when a node has several) or conditional (a router inspects the
// merged state and picks a label that a label map resolves to the next
// node). Cycles are allowed and bounded by a global iteration ceiling.
//
// Build a graph with the fluent builder, validate it once with Compile,
// then execute the immutable Plan any number of times concurrently:
//
//	g := stategraph.New().
//	    AddNode("plan", planNode).
//	    AddNode("flights", flightsNode).
//	    AddNode("hotels", hotelsNode).
//	    AddNode("summarize", summarizeNode).
//	    AddEdge("plan", "flights").
//	    AddEdge("plan", "hotels").
//	    AddEdge("flights", "summarize").
//	    AddEdge("hotels", "summarize").
//	    AddEdge("summarize", stategraph.END).
//	    SetEntryPoint("plan")
//
//	plan, err := g.Compile()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := stategraph.NewContext(context.Background())
//	final, err := plan.Invoke(ctx, map[string]any{"destination": "Lisbon"})
//
// Execution proceeds in rounds. Every node in the current frontier runs
// concurrently against the same pre-round state; their updates are
// merged afterwards in declared branch order. Sibling nodes must write
// disjoint fields: overlapping writes fail the run with
// *MergeConflictError unless WithLastWriteWins opted into deterministic
// overwrites. Nodes fed by several unconditional edges act as a join
// barrier and wait for all their predecessors before dispatching.
//
// Collaborators are injected, never global: the Context carries the
// logger and session store, and RunOptions attach a checkpoint store,
// metrics, tracing, or an event sink per run. With a checkpoint store
// attached, every merge persists a snapshot keyed by run ID and step
// ordinal, and Resume or ResumeFromStep continues or branches a run
// from any persisted step.
package stategraph
