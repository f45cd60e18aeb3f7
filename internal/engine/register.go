package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/computegrid/internal/compute"
	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/ident"
)

// RegisterState installs def as the value of state T unless T is already
// registered. It reports whether the state was installed.
func RegisterState[T any](e *Engine, def T) bool {
	return e.registerState(ident.Of[T](), reflect.TypeFor[T](), def)
}

// RegisterNamedState installs a state that has no Go type of its own. The slot
// type is the dynamic type of def, which must not be nil.
func RegisterNamedState(e *Engine, id ident.ID, def any) bool {
	if def == nil {
		panic(fmt.Sprintf("engine: state %s needs a non-nil default", id))
	}
	return e.registerState(id, reflect.TypeOf(def), def)
}

func (e *Engine) registerState(id ident.ID, typ reflect.Type, def any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.st.RegisterState(id, typ, def) {
		return false
	}
	e.rt.AddState(id)
	e.invalidateLocked()
	return true
}

// RegisterCompute installs compute T with default output def and records its
// dependencies in the graph. It never executes the compute. Registering T a
// second time is a no-op.
func RegisterCompute[T any](ctx context.Context, e *Engine, def T, c compute.Def[T]) error {
	return e.registerCompute(ctx, c.Erase(ident.Of[T]()), def)
}

// RegisterNamedCompute installs a compute that has no Go type of its own.
func RegisterNamedCompute(ctx context.Context, e *Engine, id ident.ID, def any, c compute.Def[any]) error {
	return e.registerCompute(ctx, c.Erase(id), def)
}

func (e *Engine) registerCompute(ctx context.Context, node compute.Node, def any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.nodes[node.ID]; ok {
		ctxlog.FromContext(ctx).Debug("Compute already registered, skipping.", "compute", node.ID.String())
		return nil
	}
	if err := e.rt.Record(ctx, node.ID, node.States, node.Computes); err != nil {
		return fmt.Errorf("failed to register compute: %w", err)
	}
	e.st.RegisterCompute(node.ID, node.Type, def)
	e.nodes[node.ID] = node
	e.dirty[node.ID] = struct{}{}
	e.invalidateLocked()
	return nil
}
