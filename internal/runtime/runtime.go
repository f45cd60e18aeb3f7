package runtime

import (
	"context"
	"fmt"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/graph"
	"github.com/specialistvlad/computegrid/internal/ident"
)

// Runtime wires the update queue and the dependency graph of one engine.
// Several runtimes may coexist in one process; nothing here is global.
type Runtime struct {
	sender   Sender
	receiver *Receiver
	graph    *graph.Graph[ident.ID]
}

// New creates a runtime with an empty queue and graph.
func New() *Runtime {
	s, r := NewQueue()
	return &Runtime{
		sender:   s,
		receiver: r,
		graph:    graph.New(ident.Compare),
	}
}

// Sender returns a producer handle for the update queue.
func (rt *Runtime) Sender() Sender { return rt.sender }

// Receiver returns the consumer side of the update queue.
func (rt *Runtime) Receiver() *Receiver { return rt.receiver }

// Graph exposes the dependency graph for dirty propagation and ordering.
func (rt *Runtime) Graph() *graph.Graph[ident.ID] { return rt.graph }

// Record adds the compute id as a graph node and inserts one edge per
// declared dependency. The two lists must be disjoint.
func (rt *Runtime) Record(ctx context.Context, id ident.ID, states, computes []ident.ID) error {
	seen := make(map[ident.ID]struct{}, len(states))
	for _, s := range states {
		seen[s] = struct{}{}
	}
	for _, c := range computes {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("compute %s declares %s as both a state and a compute dependency", id, c)
		}
	}

	rt.graph.AddNode(id)
	for _, dep := range states {
		rt.graph.RouteTo(dep, id)
	}
	for _, dep := range computes {
		rt.graph.RouteTo(dep, id)
	}
	ctxlog.FromContext(ctx).Debug("Recorded compute dependencies.",
		"compute", id.String(),
		"states", ident.Strings(states),
		"computes", ident.Strings(computes),
	)
	return nil
}

// AddState adds a state as a graph node so that it shows up in orderings
// even before anything depends on it.
func (rt *Runtime) AddState(id ident.ID) {
	rt.graph.AddNode(id)
}

// VerifyDeps validates the graph. It returns a *graph.CycleError naming the
// first cycle found, or nil when the graph is acyclic.
func (rt *Runtime) VerifyDeps() error {
	_, err := rt.graph.TopologySort()
	return err
}

// Order returns the execution order of every node.
func (rt *Runtime) Order() ([]ident.ID, error) {
	return rt.graph.TopologySort()
}

// Close tears the queue down. Later sends are dropped.
func (rt *Runtime) Close() {
	rt.receiver.close()
}
