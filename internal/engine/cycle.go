package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/specialistvlad/computegrid/internal/compute"
	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/runtime"
	"github.com/specialistvlad/computegrid/internal/snapshot"
	"github.com/specialistvlad/computegrid/internal/store"
)

// CycleReport summarizes one RunComputed call.
type CycleReport struct {
	Cycle uint64
	// Applied counts queue messages applied to the store.
	Applied int
	// Accepted and Dropped count deliveries by policy outcome.
	Accepted int
	Dropped  int
	// Evaluated lists the computes executed, in execution order.
	Evaluated []ident.ID
	// Pending counts computes waiting for a delivery after the cycle.
	Pending  int
	Duration time.Duration
}

// RunComputed drains the update queue into the store and re-evaluates every
// dirty compute in topological order. It refuses to run while VerifyDeps
// fails. Messages addressed to unknown identities are skipped and reported in
// the returned error; the rest of the cycle still runs.
func (e *Engine) RunComputed(ctx context.Context) (CycleReport, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	if err := e.VerifyDeps(); err != nil {
		return CycleReport{}, err
	}

	start := time.Now()
	e.mu.Lock()
	e.cycles++
	rep := CycleReport{Cycle: e.cycles}
	e.mu.Unlock()

	logger := ctxlog.FromContext(ctx).With("cycle", rep.Cycle)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Cycle started.")

	var errs []error
	for _, msg := range e.rt.Receiver().Drain() {
		if err := e.apply(msg, &rep); err != nil {
			logger.Warn("Skipping queued message.", "kind", msg.Kind.String(), "origin", msg.Origin, "error", err)
			errs = append(errs, err)
		}
	}

	if err := e.evaluate(ctx, &rep); err != nil {
		errs = append(errs, err)
	}

	rep.Pending = e.pendingCount()
	rep.Duration = time.Since(start)
	e.metrics.CycleObserved(rep.Duration, rep.Pending)
	logger.Debug("Cycle finished.",
		"applied", rep.Applied,
		"evaluated", len(rep.Evaluated),
		"accepted", rep.Accepted,
		"dropped", rep.Dropped,
		"pending", rep.Pending,
		"duration", rep.Duration,
	)
	return rep, errors.Join(errs...)
}

// apply applies one queued message. Type mismatches panic in the store.
func (e *Engine) apply(msg runtime.Message, rep *CycleReport) error {
	if msg.Kind == runtime.ModifyState {
		// The update function may call back into the engine.
		if err := e.st.ModifyState(msg.ID, msg.Fn); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch msg.Kind {
	case runtime.SetState:
		if err := e.st.SetState(msg.ID, msg.Value); err != nil {
			return err
		}
		e.markDependentsLocked(msg.ID)
	case runtime.ModifyState:
		e.markDependentsLocked(msg.ID)
	case runtime.Deliver:
		node, ok := e.nodes[msg.ID]
		if !ok {
			return store.NotFound(store.ComputeSlot, msg.ID, "deliver from "+msg.Origin)
		}
		v, err := compute.Apply(node, e.st, msg)
		if err != nil {
			return err
		}
		e.metrics.Delivery(v.Apply)
		if !v.Apply {
			rep.Dropped++
			return nil
		}
		rep.Accepted++
		e.markDependentsLocked(msg.ID)
	case runtime.Trigger:
		if _, ok := e.nodes[msg.ID]; !ok {
			return store.NotFound(store.ComputeSlot, msg.ID, "trigger from "+msg.Origin)
		}
		e.dirty[msg.ID] = struct{}{}
	default:
		return fmt.Errorf("unknown message kind %s", msg.Kind)
	}
	rep.Applied++
	e.metrics.MessageApplied(msg.Kind.String())
	return nil
}

// evaluate runs dirty computes in topological order. A compute whose output
// changed marks its dependents, which come later in the order.
func (e *Engine) evaluate(ctx context.Context, rep *CycleReport) error {
	e.mu.Lock()
	order := e.order
	e.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	for _, id := range order {
		e.mu.Lock()
		node, isCompute := e.nodes[id]
		_, dirty := e.dirty[id]
		if dirty {
			delete(e.dirty, id)
		}
		e.mu.Unlock()
		if !isCompute || !dirty {
			continue
		}

		res, err := compute.Run(ctx, node, e.st, e.rt.Sender())
		if err != nil {
			return fmt.Errorf("failed to evaluate compute %s: %w", id, err)
		}
		rep.Evaluated = append(rep.Evaluated, id)
		e.metrics.ComputeEvaluated(res.Stage.String())
		logger.Debug("Evaluated compute.", "compute", id.String(), "stage", res.Stage.String(), "generation", res.Generation)

		if res.Changed {
			e.mu.Lock()
			e.markDependentsLocked(id)
			e.mu.Unlock()
		}
	}
	return nil
}

func (e *Engine) pendingCount() int {
	n := 0
	for _, id := range e.st.ComputeIDs() {
		if info, _ := e.st.Compute(id); info.Stage == compute.Pending {
			n++
		}
	}
	return n
}

// Idle reports whether a cycle would have nothing to do: the queue is empty,
// no compute is dirty and none is Pending.
func (e *Engine) Idle() bool {
	e.mu.Lock()
	dirty := len(e.dirty)
	e.mu.Unlock()
	return dirty == 0 && e.rt.Receiver().Len() == 0 && e.pendingCount() == 0
}

// SyncComputes publishes a fresh view of every evaluated compute and hands it
// to subscribers.
func (e *Engine) SyncComputes(ctx context.Context) *snapshot.Compute {
	view, err := snapshot.CaptureComputes(e.st, e.st.ComputeIDs())
	if err != nil {
		// ComputeIDs only lists registered computes.
		panic(err)
	}
	e.view.Store(view)

	e.subsMu.Lock()
	subs := make([]func(*snapshot.Compute), 0, len(e.subs))
	for _, id := range slices.Sorted(maps.Keys(e.subs)) {
		subs = append(subs, e.subs[id])
	}
	e.subsMu.Unlock()

	for _, fn := range subs {
		fn(view)
	}
	ctxlog.FromContext(ctx).Debug("Published compute view.", "computes", view.Len(), "subscribers", len(subs))
	return view
}

// View returns the view published by the last SyncComputes.
func (e *Engine) View() *snapshot.Compute { return e.view.Load() }

// Subscribe registers fn to receive every published view. The returned
// function removes the subscription.
func (e *Engine) Subscribe(fn func(*snapshot.Compute)) (unsubscribe func()) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		delete(e.subs, id)
	}
}

// Cycle runs RunComputed followed by SyncComputes.
func (e *Engine) Cycle(ctx context.Context) (CycleReport, error) {
	rep, err := e.RunComputed(ctx)
	if rep.Cycle == 0 {
		return rep, err
	}
	e.SyncComputes(ctx)
	return rep, err
}

// Settle cycles every tick until the engine is idle or ctx is done.
func (e *Engine) Settle(ctx context.Context, tick time.Duration) (CycleReport, error) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		rep, err := e.Cycle(ctx)
		if err != nil {
			return rep, err
		}
		if e.Idle() {
			return rep, nil
		}
		select {
		case <-ctx.Done():
			return rep, fmt.Errorf("engine did not settle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
