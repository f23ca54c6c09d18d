// SPDX-License-Identifier: MPL-2.0

// Package dag orders the build stages. Nodes are stage names and an edge
// from A to B means B reads the output of A.
package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle lists the nodes left unordered, in insertion order.
		Cycle []string
	}

	// Graph is a directed graph for topological ordering.
	Graph struct {
		// dependents maps each node to the nodes that read its output.
		dependents map[string][]string
		// dependencies maps each node to the nodes it reads.
		dependencies map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []string
		known map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		dependents:   make(map[string][]string),
		dependencies: make(map[string][]string),
		known:        make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.known[name] {
		return
	}
	g.known[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that "to" depends on "from". Both nodes are added if
// needed. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	for _, existing := range g.dependents[from] {
		if existing == to {
			return
		}
	}
	g.dependents[from] = append(g.dependents[from], to)
	g.dependencies[to] = append(g.dependencies[to], from)
}

// Has reports whether name is a node of the graph.
func (g *Graph) Has(name string) bool { return g.known[name] }

// Dependencies returns the direct dependencies of name in the order the
// edges were added.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.dependencies[name]...)
}

// Levels groups the nodes into rounds of Kahn's algorithm: every node of a
// level depends only on nodes of earlier levels, so the nodes of one level
// can run concurrently. Within a level nodes keep insertion order.
func (g *Graph) Levels() ([][]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = len(g.dependencies[node])
	}

	var (
		levels  [][]string
		ordered int
		current []string
	)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			current = append(current, node)
		}
	}

	for len(current) > 0 {
		levels = append(levels, current)
		ordered += len(current)

		ready := make(map[string]bool)
		for _, node := range current {
			for _, dep := range g.dependents[node] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready[dep] = true
				}
			}
		}
		var next []string
		for _, node := range g.nodes {
			if ready[node] {
				next = append(next, node)
			}
		}
		current = next
	}

	if ordered != len(g.nodes) {
		var cycle []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycle = append(cycle, node)
			}
		}
		return nil, &CycleError{Cycle: cycle}
	}
	return levels, nil
}

// TopologicalSort returns the nodes of Levels flattened into one execution
// order.
func (g *Graph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var order []string
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}
