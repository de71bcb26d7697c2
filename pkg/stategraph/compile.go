package stategraph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Compile validates the graph and creates an executable Plan.
// Returns an error if validation fails. Multiple errors are joined
// together so a misconfigured graph reports everything wrong at once.
//
// Validation checks:
//  1. Entry point must be set and reference an existing node
//  2. Edge sources must reference existing nodes
//  3. Edge targets must reference existing nodes or END
//  4. Conditional sources must exist and not also carry unconditional edges
//  5. Label map targets must reference existing nodes or END
//  6. Every node on a path from entry must be able to reach END or a
//     finish point
//
// Unreachable nodes (not reachable from entry) are logged as warnings
// but do not cause compilation to fail.
func (g *Graph) Compile() (*Plan, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for from, targets := range g.edges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source %q does not exist", ErrNodeNotFound, from))
		}
		if _, hasConditional := g.conditionals[from]; hasConditional {
			errs = append(errs, fmt.Errorf("node %q has both unconditional and conditional edges", from))
		}
		for _, to := range targets {
			if to != END {
				if _, exists := g.nodes[to]; !exists {
					errs = append(errs, fmt.Errorf("%w: edge target %q does not exist", ErrNodeNotFound, to))
				}
			}
		}
	}

	for from, cond := range g.conditionals {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source %q does not exist", ErrNodeNotFound, from))
		}
		for label, target := range cond.labels {
			if target == END {
				continue
			}
			if _, exists := g.nodes[target]; !exists {
				errs = append(errs, fmt.Errorf("%w: label %q on node %q targets %q", ErrNodeNotFound, label, from, target))
			}
		}
	}

	for id := range g.finish {
		if _, exists := g.nodes[id]; !exists {
			errs = append(errs, fmt.Errorf("%w: finish point %q does not exist", ErrNodeNotFound, id))
		}
	}

	if g.entryPoint != "" {
		if _, exists := g.nodes[g.entryPoint]; exists {
			if !g.hasPathToEnd() {
				errs = append(errs, ErrNoPathToEnd)
			}
		}
	}

	g.warnUnreachableNodes()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildPlan(), nil
}

// hasPathToEnd reports whether the entry point can reach a terminal:
// END or a finish point. Reverse reachability, iterated to fixpoint.
// Unlike router-only designs, label maps make conditional routing
// statically checkable: a conditional source reaches a terminal only
// if one of its mapped targets does.
func (g *Graph) hasPathToEnd() bool {
	canReach := make(map[string]bool)
	canReach[END] = true
	for id := range g.finish {
		canReach[id] = true
	}

	changed := true
	for changed {
		changed = false

		for from, targets := range g.edges {
			if canReach[from] {
				continue
			}
			for _, to := range targets {
				if canReach[to] {
					canReach[from] = true
					changed = true
					break
				}
			}
		}

		for from, cond := range g.conditionals {
			if canReach[from] {
				continue
			}
			for _, target := range cond.labels {
				if canReach[target] {
					canReach[from] = true
					changed = true
					break
				}
			}
		}
	}

	return canReach[g.entryPoint]
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph) warnUnreachableNodes() {
	if g.entryPoint == "" {
		return
	}
	if _, exists := g.nodes[g.entryPoint]; !exists {
		return
	}

	reachable := g.findReachableNodes()

	for _, nodeID := range g.order {
		if !reachable[nodeID] {
			slog.Warn("node is unreachable from entry", "node_id", nodeID)
		}
	}
}

// findReachableNodes returns the set of nodes reachable from the entry
// point. Conditional edges contribute exactly their mapped targets.
func (g *Graph) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.edges[current] {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}

		if cond, ok := g.conditionals[current]; ok {
			for _, target := range cond.labels {
				if target != END && !reachable[target] {
					reachable[target] = true
					queue = append(queue, target)
				}
			}
		}
	}

	return reachable
}

// buildPlan creates the immutable Plan from the builder state.
func (g *Graph) buildPlan() *Plan {
	nodes := make(map[string]NodeFunc, len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string][]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = make([]string, len(targets))
		copy(edges[from], targets)
	}

	conditionals := make(map[string]conditionalEdge, len(g.conditionals))
	for from, cond := range g.conditionals {
		labels := make(map[string]string, len(cond.labels))
		for label, target := range cond.labels {
			labels[label] = target
		}
		conditionals[from] = conditionalEdge{router: cond.router, labels: labels}
	}

	finish := make(map[string]bool, len(g.finish))
	for id := range g.finish {
		finish[id] = true
	}

	order := make([]string, len(g.order))
	copy(order, g.order)

	branchIndex := make(map[string]int, len(order))
	for i, id := range order {
		branchIndex[id] = i
	}

	// Predecessors over unconditional edges only; conditional arrivals
	// bypass the join barrier. Finish points never schedule successors,
	// so their outgoing edges do not count toward a barrier either.
	predecessors := make(map[string][]string)
	for _, from := range order {
		if finish[from] {
			continue
		}
		seen := make(map[string]bool)
		for _, to := range edges[from] {
			if to == END || seen[to] {
				continue
			}
			seen[to] = true
			predecessors[to] = append(predecessors[to], from)
		}
	}

	// A join is any node fed by two or more unconditional edges: the
	// scheduler holds it until every listed predecessor has arrived.
	joins := make(map[string][]string)
	for to, preds := range predecessors {
		if len(preds) >= 2 {
			sorted := make([]string, len(preds))
			copy(sorted, preds)
			sort.Strings(sorted)
			joins[to] = sorted
		}
	}

	return &Plan{
		nodes:        nodes,
		edges:        edges,
		conditionals: conditionals,
		entryPoint:   g.entryPoint,
		finish:       finish,
		order:        order,
		branchIndex:  branchIndex,
		predecessors: predecessors,
		joins:        joins,
	}
}
