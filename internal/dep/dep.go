// Package dep builds the Dependency Bundle handed to a compute's step: a
// read-only view over exactly the declared dependencies of one compute.
//
// A bundle is a loan. It is built fresh for one execution and closed when the
// step returns; reading a closed bundle panics, so a step cannot keep using
// values the store is free to replace right after the call. Asynchronous work
// started by a step must copy whatever it needs before the step returns.
package dep

import (
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/store"
)

// Source is where a bundle reads current values from.
type Source interface {
	StateValue(id ident.ID) (any, bool)
	ComputeValue(id ident.ID) (any, bool)
}

// Bundle exposes the current values of one compute's declared dependencies.
type Bundle struct {
	owner    ident.ID
	states   map[ident.ID]any
	computes map[ident.ID]any
	closed   atomic.Bool
}

// Build collects the current value of every declared dependency of owner.
// A dependency that is not registered in src yields a *store.NotFoundError
// whose context names owner.
func Build(owner ident.ID, states, computes []ident.ID, src Source) (*Bundle, error) {
	b := &Bundle{
		owner:    owner,
		states:   make(map[ident.ID]any, len(states)),
		computes: make(map[ident.ID]any, len(computes)),
	}
	breadcrumb := "deps of " + owner.String()
	for _, id := range states {
		v, ok := src.StateValue(id)
		if !ok {
			return nil, store.NotFound(store.StateSlot, id, breadcrumb)
		}
		b.states[id] = v
	}
	for _, id := range computes {
		v, ok := src.ComputeValue(id)
		if !ok {
			return nil, store.NotFound(store.ComputeSlot, id, breadcrumb)
		}
		b.computes[id] = v
	}
	return b, nil
}

// Owner returns the compute the bundle was built for.
func (b *Bundle) Owner() ident.ID { return b.owner }

// Close ends the loan. It is called by the engine when the step returns.
func (b *Bundle) Close() { b.closed.Store(true) }

func (b *Bundle) checkOpen() {
	if b.closed.Load() {
		panic(fmt.Sprintf("dep: bundle of %s used after its execution returned", b.owner))
	}
}

// Get returns the value of a declared dependency, state or compute. Asking for
// an undeclared identity is a contract violation and panics.
func (b *Bundle) Get(id ident.ID) any {
	b.checkOpen()
	if v, ok := b.states[id]; ok {
		return v
	}
	if v, ok := b.computes[id]; ok {
		return v
	}
	panic(fmt.Sprintf("dep: %s read %s, which is not a declared dependency", b.owner, id))
}

// Each calls fn for every declared dependency, states first, each group in
// identity order.
func (b *Bundle) Each(fn func(id ident.ID, v any)) {
	b.checkOpen()
	for _, group := range []map[ident.ID]any{b.states, b.computes} {
		ids := make([]ident.ID, 0, len(group))
		for id := range group {
			ids = append(ids, id)
		}
		ident.Sort(ids)
		for _, id := range ids {
			fn(id, group[id])
		}
	}
}

// Len returns the number of declared dependencies.
func (b *Bundle) Len() int { return len(b.states) + len(b.computes) }

func typed[T any](b *Bundle, group map[ident.ID]any, kind string) T {
	b.checkOpen()
	id := ident.Of[T]()
	v, ok := group[id]
	if !ok {
		panic(fmt.Sprintf("dep: %s read %s %s, which is not a declared dependency", b.owner, kind, id))
	}
	out, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("dep: %s holds %T, not %s", id, v, id.Name()))
	}
	return out
}

// State returns the declared state dependency of type T.
func State[T any](b *Bundle) T {
	return typed[T](b, b.states, "state")
}

// Compute returns the declared compute dependency of type T.
func Compute[T any](b *Bundle) T {
	return typed[T](b, b.computes, "compute")
}
