package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/computegrid/internal/command"
	"github.com/specialistvlad/computegrid/internal/compute"
	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/runtime"
	"github.com/specialistvlad/computegrid/internal/snapshot"
)

// Cached returns the last accepted output of compute T. It reports false
// until the compute has been evaluated once. While a re-evaluation is
// Pending the previous output keeps being returned.
func Cached[T any](e *Engine) (T, bool) {
	var zero T
	v, ok := e.CachedNamed(ident.Of[T]())
	if !ok || v == nil {
		return zero, ok
	}
	t, isT := v.(T)
	if !isT {
		panic(fmt.Sprintf("engine: compute %s holds %T, not %s", ident.Of[T](), v, reflect.TypeFor[T]()))
	}
	return t, true
}

// CachedNamed is Cached for an identity without a Go type.
func (e *Engine) CachedNamed(id ident.ID) (any, bool) {
	info, ok := e.st.Compute(id)
	if !ok || !info.Evaluated {
		return nil, false
	}
	return info.Value, true
}

// Stage returns the stage of compute id.
func (e *Engine) Stage(id ident.ID) (compute.Stage, bool) {
	info, ok := e.st.Compute(id)
	return info.Stage, ok
}

// Mut is an enqueue-only handle on state T. Nothing it does is visible before
// the next RunComputed.
type Mut[T any] struct {
	id     ident.ID
	sender runtime.Sender
}

// StateMut returns a mutation handle for state T.
func StateMut[T any](e *Engine) Mut[T] {
	return Mut[T]{id: ident.Of[T](), sender: e.rt.Sender()}
}

// Set queues v as the new value.
func (m Mut[T]) Set(v T) bool {
	return m.sender.Send(runtime.Message{Kind: runtime.SetState, ID: m.id, Value: v, Origin: "mut"})
}

// Update queues fn to be applied to the value current at apply time.
func (m Mut[T]) Update(fn func(T) T) bool {
	return m.sender.Send(runtime.Message{
		Kind:   runtime.ModifyState,
		ID:     m.id,
		Fn:     func(v any) any { return fn(v.(T)) },
		Origin: "mut",
	})
}

// SetNamed queues v as the new value of state id.
func (e *Engine) SetNamed(id ident.ID, v any) bool {
	return e.rt.Sender().Send(runtime.Message{Kind: runtime.SetState, ID: id, Value: v, Origin: "set"})
}

// Trigger queues a re-evaluation of compute T.
func Trigger[T any](e *Engine) bool {
	return e.TriggerNamed(ident.Of[T]())
}

// TriggerNamed queues a re-evaluation of compute id.
func (e *Engine) TriggerNamed(id ident.ID) bool {
	return e.rt.Sender().Send(runtime.Message{Kind: runtime.Trigger, ID: id, Origin: "trigger"})
}

// Snapshot captures the current values of the given states and computes. It
// waits for a running cycle to finish, so it never observes applied messages
// without the evaluation that follows them. It must not be called from a
// compute step.
func (e *Engine) Snapshot(states, computes []ident.ID) (*snapshot.Command, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	return snapshot.Capture(e.st, states, computes)
}

// Dispatch captures a fresh snapshot of cmd's dependencies and runs cmd
// against it. Effects of the command land in the update queue. It is safe to
// call from any goroutine except a compute step.
func (e *Engine) Dispatch(ctx context.Context, cmd command.Command) (command.Receipt, error) {
	states, computes := cmd.Deps()
	snap, err := e.Snapshot(states, computes)
	if err != nil {
		return command.Receipt{}, fmt.Errorf("failed to snapshot for command %s: %w", cmd.Name(), err)
	}
	return e.dispatcher.Dispatch(ctx, cmd, snap)
}
