package graph

import (
	"container/heap"
	"fmt"
	"slices"
	"sync"
)

// Graph is a directed graph whose edges run dependency -> dependent.
type Graph[N comparable] struct {
	mu    sync.RWMutex
	cmp   func(a, b N) int
	nodes map[N]*vertex[N]
}

// vertex is un-exported so the graph is only manipulated through its ids.
type vertex[N comparable] struct {
	id         N
	deps       map[N]struct{} // predecessors
	dependents map[N]struct{} // successors
}

// New creates an empty graph. cmp orders node ids and makes every traversal
// deterministic.
func New[N comparable](cmp func(a, b N) int) *Graph[N] {
	return &Graph[N]{
		cmp:   cmp,
		nodes: make(map[N]*vertex[N]),
	}
}

// AddNode adds a node. Adding an existing node does nothing.
func (g *Graph[N]) AddNode(id N) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(id)
}

func (g *Graph[N]) addNodeLocked(id N) *vertex[N] {
	if v, ok := g.nodes[id]; ok {
		return v
	}
	v := &vertex[N]{
		id:         id,
		deps:       make(map[N]struct{}),
		dependents: make(map[N]struct{}),
	}
	g.nodes[id] = v
	return v
}

// RouteTo inserts the edge dependency -> dependent, adding either node if it is
// missing. Inserting the same edge twice is a no-op. A self edge is accepted
// and reported as a cycle by TopologySort.
func (g *Graph[N]) RouteTo(dependency, dependent N) {
	g.mu.Lock()
	defer g.mu.Unlock()

	from := g.addNodeLocked(dependency)
	to := g.addNodeLocked(dependent)
	from.dependents[dependent] = struct{}{}
	to.deps[dependency] = struct{}{}
}

// Has reports whether id is a node of the graph.
func (g *Graph[N]) Has(id N) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph[N]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Nodes returns every node in id order.
func (g *Graph[N]) Nodes() []N {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]N, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	slices.SortFunc(out, g.cmp)
	return out
}

// Dependencies returns the direct dependencies of id in id order.
func (g *Graph[N]) Dependencies(id N) ([]N, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}
	return g.sortedLocked(v.deps), nil
}

// Dependents returns the direct dependents of id in id order.
func (g *Graph[N]) Dependents(id N) ([]N, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}
	return g.sortedLocked(v.dependents), nil
}

// Descendants returns every node reachable from id, excluding id itself unless
// it sits on a cycle. Unknown ids have no descendants.
func (g *Graph[N]) Descendants(id N) []N {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, ok := g.nodes[id]
	if !ok {
		return nil
	}
	seen := make(map[N]struct{})
	stack := g.sortedLocked(start.dependents)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := seen[n]; done {
			continue
		}
		seen[n] = struct{}{}
		for d := range g.nodes[n].dependents {
			if _, done := seen[d]; !done {
				stack = append(stack, d)
			}
		}
	}
	return g.sortedLocked(seen)
}

func (g *Graph[N]) sortedLocked(set map[N]struct{}) []N {
	out := make([]N, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.SortFunc(out, g.cmp)
	return out
}

// TopologySort returns every node ordered so that each dependency precedes its
// dependents. If the graph has a cycle it returns a *CycleError for the first
// cycle found instead. The graph is not modified.
func (g *Graph[N]) TopologySort() ([]N, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indeg := make(map[N]int, len(g.nodes))
	ready := &nodeHeap[N]{cmp: g.cmp}
	for id, v := range g.nodes {
		indeg[id] = len(v.deps)
		if len(v.deps) == 0 {
			ready.items = append(ready.items, id)
		}
	}
	heap.Init(ready)

	order := make([]N, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(N)
		order = append(order, n)
		for d := range g.nodes[n].dependents {
			indeg[d]--
			if indeg[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	if len(order) == len(g.nodes) {
		return order, nil
	}
	return nil, &CycleError[N]{Cycle: g.findCycleLocked()}
}

// findCycleLocked runs a deterministic depth-first search and returns the first
// back edge it meets as a closed path.
func (g *Graph[N]) findCycleLocked() []N {
	const (
		white = iota
		gray
		black
	)
	color := make(map[N]int, len(g.nodes))
	var stack []N
	var cycle []N

	var visit func(n N) bool
	visit = func(n N) bool {
		color[n] = gray
		stack = append(stack, n)
		for _, d := range g.sortedLocked(g.nodes[n].dependents) {
			switch color[d] {
			case white:
				if visit(d) {
					return true
				}
			case gray:
				start := slices.Index(stack, d)
				cycle = append(slices.Clone(stack[start:]), d)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, n := range g.sortedLocked(keysOf(g.nodes)) {
		if color[n] == white && visit(n) {
			break
		}
	}
	return cycle
}

func keysOf[N comparable, V any](m map[N]V) map[N]struct{} {
	out := make(map[N]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// nodeHeap is the ready queue of TopologySort, a min-heap by cmp.
type nodeHeap[N comparable] struct {
	items []N
	cmp   func(a, b N) int
}

func (h *nodeHeap[N]) Len() int           { return len(h.items) }
func (h *nodeHeap[N]) Less(i, j int) bool { return h.cmp(h.items[i], h.items[j]) < 0 }
func (h *nodeHeap[N]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *nodeHeap[N]) Push(x any)         { h.items = append(h.items, x.(N)) }
func (h *nodeHeap[N]) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}
