package stategraph

import (
	"fmt"
	"strings"
	"sync"
)

// conditionalEdge pairs a router with the label map it routes over.
type conditionalEdge struct {
	router RouterFunc
	labels map[string]string
}

// Graph is a mutable builder for creating execution graphs.
// Use New to create a graph, then chain AddNode, AddEdge,
// AddConditionalEdges, SetEntryPoint, and SetFinishPoint calls to
// define the workflow.
//
// Graph is NOT thread-safe during building. Construct it from a single
// goroutine, then call Compile() to create an immutable Plan that can
// be safely shared and executed concurrently.
//
// Example:
//
//	g := stategraph.New().
//	    AddNode("draft", draftNode).
//	    AddNode("review", reviewNode).
//	    AddEdge("draft", "review").
//	    AddConditionalEdges("review", shouldRevise, map[string]string{
//	        "revise": "draft",
//	        "done":   stategraph.END,
//	    }).
//	    SetEntryPoint("draft")
//
//	plan, err := g.Compile()
type Graph struct {
	mu           sync.RWMutex
	nodes        map[string]NodeFunc
	order        []string
	edges        map[string][]string
	conditionals map[string]conditionalEdge
	entryPoint   string
	finish       map[string]bool
}

// New creates a new graph builder.
func New() *Graph {
	return &Graph{
		nodes:        make(map[string]NodeFunc),
		edges:        make(map[string][]string),
		conditionals: make(map[string]conditionalEdge),
		finish:       make(map[string]bool),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is a reserved word ("END", END, or ErrorLabel, case-insensitive)
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
//   - id already exists in the graph
func (g *Graph) AddNode(id string, fn NodeFunc) *Graph {
	if id == "" {
		panic("stategraph: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END || idLower == ErrorLabel {
		panic(fmt.Sprintf("stategraph: node ID cannot be reserved word %q", id))
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("stategraph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("stategraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("stategraph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	g.order = append(g.order, id)
	return g
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node ID or END. Adding several edges from the
// same node fans execution out: every target is dispatched concurrently
// in the next round, in the order the edges were added.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here, so edges can be
// added in any order relative to their nodes.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdges adds a routed edge: after from's update is
// merged, router inspects the state and returns a label, and labels
// resolves that label to the next node or END.
// Returns the graph for method chaining.
//
// The map may bind the reserved ErrorLabel to a node; if from fails,
// execution continues there with the failure recorded under ErrorField
// instead of ending the run.
//
// A node has either unconditional edges or a conditional edge, not
// both; registering both panics at Compile time via validation errors.
//
// Panics if router is nil or labels is empty.
func (g *Graph) AddConditionalEdges(from string, router RouterFunc, labels map[string]string) *Graph {
	if router == nil {
		panic("stategraph: router function cannot be nil")
	}
	if len(labels) == 0 {
		panic("stategraph: conditional edge label map cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	copied := make(map[string]string, len(labels))
	for label, target := range labels {
		copied[label] = target
	}
	g.conditionals[from] = conditionalEdge{router: router, labels: copied}
	return g
}

// SetEntryPoint designates the node where every run begins.
// This must be called before Compile(); validation happens there.
// Returns the graph for method chaining.
func (g *Graph) SetEntryPoint(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// SetFinishPoint marks a node as terminal: once it completes, its part
// of the run is done and no successors are scheduled. Equivalent to an
// edge to END, kept separate for readability. May be called for several
// nodes. Returns the graph for method chaining.
func (g *Graph) SetFinishPoint(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.finish[id] = true
	return g
}
