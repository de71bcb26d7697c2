package stategraph

import "sort"

// Plan is an immutable, validated execution graph produced by Compile.
// It is safe for concurrent use: any number of runs may execute the
// same Plan simultaneously, each with its own context and state.
type Plan struct {
	nodes        map[string]NodeFunc
	edges        map[string][]string
	conditionals map[string]conditionalEdge
	entryPoint   string
	finish       map[string]bool

	// order preserves node declaration order; branchIndex inverts it.
	// Declared order is the deterministic tiebreak for merges.
	order       []string
	branchIndex map[string]int

	// predecessors maps a node to the sources of its unconditional
	// incoming edges; joins holds the barrier membership for nodes with
	// two or more.
	predecessors map[string][]string
	joins        map[string][]string
}

// EntryPoint returns the node where runs begin.
func (p *Plan) EntryPoint() string {
	return p.entryPoint
}

// NodeIDs returns all node IDs in declaration order.
func (p *Plan) NodeIDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// HasNode reports whether a node is registered.
func (p *Plan) HasNode(id string) bool {
	_, ok := p.nodes[id]
	return ok
}

// Successors returns the unconditional edge targets of a node, in the
// order the edges were added. Returns nil for conditional nodes; their
// successor is decided by the router at run time.
func (p *Plan) Successors(id string) []string {
	targets := p.edges[id]
	if len(targets) == 0 {
		return nil
	}
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// Predecessors returns the sources of a node's unconditional incoming
// edges, sorted.
func (p *Plan) Predecessors(id string) []string {
	preds := p.predecessors[id]
	if len(preds) == 0 {
		return nil
	}
	out := make([]string, len(preds))
	copy(out, preds)
	sort.Strings(out)
	return out
}

// IsConditional reports whether a node routes through a router and
// label map.
func (p *Plan) IsConditional(id string) bool {
	_, ok := p.conditionals[id]
	return ok
}

// Labels returns the label map of a conditional node, sorted by label.
// Returns nil for non-conditional nodes.
func (p *Plan) Labels(id string) []string {
	cond, ok := p.conditionals[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cond.labels))
	for label := range cond.labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// IsFinishPoint reports whether a node was marked terminal.
func (p *Plan) IsFinishPoint(id string) bool {
	return p.finish[id]
}

// IsJoin reports whether a node waits on a fan-in barrier.
func (p *Plan) IsJoin(id string) bool {
	_, ok := p.joins[id]
	return ok
}

// errorRoute returns the ErrorLabel target of a node's conditional
// edge, if it has one.
func (p *Plan) errorRoute(id string) (string, bool) {
	cond, ok := p.conditionals[id]
	if !ok {
		return "", false
	}
	target, ok := cond.labels[ErrorLabel]
	return target, ok
}
