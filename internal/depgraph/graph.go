// Package depgraph computes deterministic start and stop orderings for a
// set of named agents connected by "depends_on" edges.
package depgraph

import (
	"fmt"
	"sort"
)

// Node is one agent's position in the dependency graph.
type Node struct {
	Name      string
	Priority  int
	DependsOn []string
}

// Graph is an immutable adjacency representation built from a set of Nodes.
type Graph struct {
	nodes map[string]Node
	// dependents[x] = set of nodes that declare x in DependsOn
	dependents map[string][]string
}

// CycleError reports a dependency cycle detected while building or ordering
// a Graph. Cycle lists the node names on the cycle in traversal order.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %v", e.Cycle)
}

// UnknownDependencyError reports a DependsOn entry naming a node that does
// not exist in the graph.
type UnknownDependencyError struct {
	Node      string
	DependsOn string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("agent %q depends on unknown agent %q", e.Node, e.DependsOn)
}

// New builds a Graph from nodes. It returns an UnknownDependencyError if any
// DependsOn entry references a name not present in nodes. It does not itself
// reject cycles; call StartOrder or DetectCycle to validate acyclicity.
func New(nodes []Node) (*Graph, error) {
	byName := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}

	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, &UnknownDependencyError{Node: n.Name, DependsOn: dep}
			}
			dependents[dep] = append(dependents[dep], n.Name)
		}
	}

	return &Graph{nodes: byName, dependents: dependents}, nil
}

// StartOrder returns agent names in dependency order: every dependency
// precedes its dependents. Ties (nodes simultaneously ready) are broken by
// ascending priority, then ascending name, so the result is fully
// deterministic for a given Graph. Returns a *CycleError if the graph is not
// a DAG.
func (g *Graph) StartOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		inDegree[name] = len(n.DependsOn)
	}

	ready := readyNames(inDegree, g.nodes)
	order := make([]string, 0, len(g.nodes))

	for len(ready) > 0 {
		sortByPriorityThenName(ready, g.nodes)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range g.dependents[next] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(g.nodes) {
		cycle, err := g.DetectCycle()
		if err != nil {
			return nil, err
		}
		// Should not happen: inDegree never reached 0 for some nodes but
		// DetectCycle found none. Treat defensively as a cycle anyway.
		return nil, &CycleError{Cycle: cycle}
	}

	return order, nil
}

// StopOrder returns the reverse of StartOrder: dependents are stopped before
// their dependencies, so stopping an agent never leaves a live agent
// depending on an already-stopped one.
func (g *Graph) StopOrder() ([]string, error) {
	start, err := g.StartOrder()
	if err != nil {
		return nil, err
	}
	stop := make([]string, len(start))
	for i, name := range start {
		stop[len(start)-1-i] = name
	}
	return stop, nil
}

// DetectCycle reports whether the graph contains a dependency cycle. It
// returns (nil, nil) when the graph is acyclic, or a CycleError naming one
// cycle when it is not.
func (g *Graph) DetectCycle() ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var path []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		path = append(path, name)

		deps := g.nodes[name].DependsOn
		sorted := append([]string(nil), deps...)
		sort.Strings(sorted)

		for _, dep := range sorted {
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				cycle = cycleFromPath(path, dep)
				return true
			}
		}

		color[name] = black
		path = path[:len(path)-1]
		return false
	}

	for _, name := range names {
		if color[name] == white {
			if visit(name) {
				return cycle, &CycleError{Cycle: cycle}
			}
		}
	}

	return nil, nil
}

func cycleFromPath(path []string, start string) []string {
	for i, name := range path {
		if name == start {
			out := append([]string(nil), path[i:]...)
			return append(out, start)
		}
	}
	return append([]string(nil), path...)
}

func readyNames(inDegree map[string]int, nodes map[string]Node) []string {
	ready := make([]string, 0, len(nodes))
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	return ready
}

func sortByPriorityThenName(names []string, nodes map[string]Node) {
	sort.Slice(names, func(i, j int) bool {
		a, b := nodes[names[i]], nodes[names[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})
}
