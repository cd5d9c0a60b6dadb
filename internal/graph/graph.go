// Package graph provides a dependency graph for tool scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCycleDetected indicates a circular dependency was found in the graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// Node is a schedulable unit and the nodes it waits on.
type Node struct {
	ID string
	// DependsOn lists hard dependencies: each must succeed before the node
	// can run. A failed hard dependency blocks the node.
	DependsOn []string
	// After lists soft dependencies: each must finish, successfully or not,
	// before the node can run.
	After []string
}

// State is the progress of a node.
type State int

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// DependencyGraph is a directed acyclic graph of node dependencies.
type DependencyGraph struct {
	mu sync.RWMutex
	// order keeps node IDs in insertion order so results are deterministic.
	order []string
	nodes map[string]Node
	// edges maps node ID to every node it waits on, hard and soft.
	edges map[string][]string
	state map[string]State
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]Node),
		edges:    make(map[string][]string),
		state:    make(map[string]State),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from nodes. It returns an error if a node is
// declared twice, a dependency references an unknown node, or the graph
// contains a cycle.
func (g *DependencyGraph) Build(nodes []Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d nodes", len(nodes))

	for _, n := range nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return fmt.Errorf("node %s declared twice", n.ID)
		}
		g.order = append(g.order, n.ID)
		g.nodes[n.ID] = n
		g.edges[n.ID] = nil
		g.state[n.ID] = StatePending
	}

	for _, n := range nodes {
		for _, dep := range append(append([]string(nil), n.DependsOn...), n.After...) {
			if _, exists := g.nodes[dep]; !exists {
				return fmt.Errorf("node %s depends on unknown node %s", n.ID, dep)
			}
			g.edges[n.ID] = append(g.edges[n.ID], dep)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built with %d nodes, edges: %v", len(g.nodes), g.edges)
	return nil
}

// hasCycleLocked runs a coloring DFS; it assumes the lock is held.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// GetReady returns pending nodes whose hard dependencies have all
// succeeded and whose soft dependencies have all finished, in insertion
// order. Ready nodes may run in parallel.
func (g *DependencyGraph) GetReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range g.order {
		if g.state[id] != StatePending {
			continue
		}
		if g.readyLocked(id) {
			ready = append(ready, id)
		}
	}

	g.debugLog("[graph.GetReady] %d ready: %v", len(ready), ready)
	return ready
}

func (g *DependencyGraph) readyLocked(id string) bool {
	n := g.nodes[id]
	for _, dep := range n.DependsOn {
		if g.state[dep] != StateSucceeded {
			return false
		}
	}
	for _, dep := range n.After {
		if g.state[dep] == StatePending {
			return false
		}
	}
	return true
}

// Blocked returns pending nodes that can never run because a hard
// dependency failed, together with the failed dependency.
func (g *DependencyGraph) Blocked() map[string]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	blocked := make(map[string]string)
	for _, id := range g.order {
		if g.state[id] != StatePending {
			continue
		}
		for _, dep := range g.nodes[id].DependsOn {
			if g.state[dep] == StateFailed {
				blocked[id] = dep
				break
			}
		}
	}
	return blocked
}

// MarkComplete records that a node succeeded.
func (g *DependencyGraph) MarkComplete(id string) {
	g.mark(id, StateSucceeded)
}

// MarkFailed records that a node failed or was blocked.
func (g *DependencyGraph) MarkFailed(id string) {
	g.mark(id, StateFailed)
}

func (g *DependencyGraph) mark(id string, s State) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		g.debugLog("[graph.mark] ignoring unknown node %s", id)
		return
	}
	g.state[id] = s
	g.debugLog("[graph.mark] %s -> %s", id, s)
}

// Done reports whether every node has finished.
func (g *DependencyGraph) Done() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range g.order {
		if g.state[id] == StatePending {
			return false
		}
	}
	return true
}

// Pending returns the nodes that have not finished, in insertion order.
func (g *DependencyGraph) Pending() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for _, id := range g.order {
		if g.state[id] == StatePending {
			ids = append(ids, id)
		}
	}
	return ids
}
