package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/computegrid/internal/command"
	"github.com/specialistvlad/computegrid/internal/compute"
	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/metrics"
	"github.com/specialistvlad/computegrid/internal/runtime"
	"github.com/specialistvlad/computegrid/internal/snapshot"
	"github.com/specialistvlad/computegrid/internal/store"
)

// Engine wires the store, the runtime and the dispatcher of one instance.
type Engine struct {
	rt         *runtime.Runtime
	st         *store.Store
	dispatcher *command.Dispatcher
	metrics    *metrics.Metrics
	workers    int

	// cycleMu serializes RunComputed: there is exactly one consumer.
	cycleMu sync.Mutex

	mu       sync.Mutex
	nodes    map[ident.ID]compute.Node
	dirty    map[ident.ID]struct{}
	order    []ident.ID
	verified bool
	verr     error
	cycles   uint64

	view   atomic.Pointer[snapshot.Compute]
	subsMu sync.Mutex
	subs   map[int]func(*snapshot.Compute)
	nextID int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records engine activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWorkers bounds the number of background commands running at once.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		rt:      runtime.New(),
		st:      store.New(),
		workers: 4,
		nodes:   make(map[ident.ID]compute.Node),
		dirty:   make(map[ident.ID]struct{}),
		subs:    make(map[int]func(*snapshot.Compute)),
	}
	for _, opt := range opts {
		opt(e)
	}
	var dopts []command.Option
	if e.metrics != nil {
		dopts = append(dopts, command.WithObserver(e.metrics))
	}
	e.dispatcher = command.NewDispatcher(e.rt.Sender(), e.workers, dopts...)
	empty, _ := snapshot.CaptureComputes(e.st, nil)
	e.view.Store(empty)
	return e
}

// Sender returns a producer handle on the update queue.
func (e *Engine) Sender() runtime.Sender { return e.rt.Sender() }

// Store exposes the slot table for read-only inspection.
func (e *Engine) Store() *store.Store { return e.st }

// VerifyDeps validates the dependency graph and checks that every declared
// dependency is registered. A cycle is reported before any missing
// registration. The result is cached until the next registration.
func (e *Engine) VerifyDeps() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verifyLocked()
}

func (e *Engine) verifyLocked() error {
	if e.verified {
		return e.verr
	}
	e.order, e.verr = e.rt.Order()
	if e.verr == nil {
		e.verr = e.checkRegisteredLocked()
	}
	e.verified = true
	return e.verr
}

func (e *Engine) checkRegisteredLocked() error {
	var errs []error
	for _, id := range sortedIDs(e.nodes) {
		n := e.nodes[id]
		ctx := "deps of " + id.String()
		for _, s := range n.States {
			if !e.st.HasState(s) {
				errs = append(errs, store.NotFound(store.StateSlot, s, ctx))
			}
		}
		for _, c := range n.Computes {
			if !e.st.HasCompute(c) {
				errs = append(errs, store.NotFound(store.ComputeSlot, c, ctx))
			}
		}
	}
	return errors.Join(errs...)
}

// Order returns the validated execution order of every state and compute.
func (e *Engine) Order() ([]ident.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.verifyLocked(); err != nil {
		return nil, err
	}
	return append([]ident.ID(nil), e.order...), nil
}

// Node returns the registered definition of compute id.
func (e *Engine) Node(id ident.ID) (compute.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	return n, ok
}

// Wait blocks until every background command has returned and reports the
// first error among them.
func (e *Engine) Wait() error {
	return e.dispatcher.Wait()
}

// Close tears the runtime down. Later sends are dropped.
func (e *Engine) Close() {
	e.rt.Close()
}

func (e *Engine) invalidateLocked() {
	e.verified = false
	e.verr = nil
	e.order = nil
}

func (e *Engine) markDirtyLocked(id ident.ID) {
	if _, ok := e.nodes[id]; ok {
		e.dirty[id] = struct{}{}
	}
}

// markDependentsLocked marks the direct dependents of id dirty. Transitive
// dependents follow during the same evaluation pass when a dependent's output
// changes.
func (e *Engine) markDependentsLocked(id ident.ID) {
	deps, err := e.rt.Graph().Dependents(id)
	if err != nil {
		return
	}
	for _, d := range deps {
		e.markDirtyLocked(d)
	}
}

func sortedIDs[V any](m map[ident.ID]V) []ident.ID {
	ids := make([]ident.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	ident.Sort(ids)
	return ids
}

