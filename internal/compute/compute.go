package compute

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/dep"
	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/runtime"
	"github.com/specialistvlad/computegrid/internal/store"
)

// Stage is re-exported from store so callers rarely need both packages.
type Stage = store.Stage

const (
	Finished = store.Finished
	Pending  = store.Pending
)

// Outcome is what a step returns.
type Outcome[T any] struct {
	stage Stage
	value T
}

// Done finishes the execution synchronously with v.
func Done[T any](v T) Outcome[T] {
	return Outcome[T]{stage: Finished, value: v}
}

// Await reports that the step handed off to asynchronous work that will call
// Updater.Deliver later.
func Await[T any]() Outcome[T] {
	return Outcome[T]{stage: Pending}
}

// Stage returns the stage of the outcome.
func (o Outcome[T]) Stage() Stage { return o.stage }

// StepFunc evaluates a compute. The bundle is only valid during the call.
type StepFunc[T any] func(ctx context.Context, deps *dep.Bundle, up Updater[T]) Outcome[T]

// Def declares a compute of type T.
type Def[T any] struct {
	States   []ident.ID
	Computes []ident.ID
	Step     StepFunc[T]
	Policy   Policy
}

// Node is the type-erased form of a Def held by the engine.
type Node struct {
	ID       ident.ID
	Type     reflect.Type
	States   []ident.ID
	Computes []ident.ID
	Policy   Policy
	step     func(ctx context.Context, b *dep.Bundle, gen uint64, env updaterEnv) (any, Stage)
}

// Erase binds d to id and drops its type parameter.
func (d Def[T]) Erase(id ident.ID) Node {
	if d.Step == nil {
		panic(fmt.Sprintf("compute: %s has no step function", id))
	}
	step := d.Step
	return Node{
		ID:       id,
		Type:     reflect.TypeFor[T](),
		States:   append([]ident.ID(nil), d.States...),
		Computes: append([]ident.ID(nil), d.Computes...),
		Policy:   d.Policy,
		step: func(ctx context.Context, b *dep.Bundle, gen uint64, env updaterEnv) (any, Stage) {
			out := step(ctx, b, Updater[T]{id: id, gen: gen, env: env})
			if out.stage == Finished {
				return out.value, Finished
			}
			return nil, Pending
		},
	}
}

// Result describes one execution.
type Result struct {
	ID         ident.ID
	Generation uint64
	Stage      Stage
	// Changed is true when the execution replaced the cached output.
	Changed bool
}

// Run executes node once against st. Deliveries of asynchronous work are sent
// to sender. It must be called from the engine's consumer goroutine.
func Run(ctx context.Context, node Node, st *store.Store, sender runtime.Sender) (Result, error) {
	bundle, err := dep.Build(node.ID, node.States, node.Computes, st)
	if err != nil {
		return Result{}, err
	}
	gen, err := st.StartExecution(node.ID)
	if err != nil {
		return Result{}, err
	}

	env := updaterEnv{
		sender: sender,
		logger: ctxlog.FromContext(ctx),
		latest: func() uint64 {
			info, _ := st.Compute(node.ID)
			return info.Generation
		},
	}
	value, stage := func() (any, Stage) {
		defer bundle.Close()
		return node.step(ctx, bundle, gen, env)
	}()

	res := Result{ID: node.ID, Generation: gen, Stage: stage}
	if stage == Finished {
		if err := st.SetOutput(node.ID, value, Finished); err != nil {
			return res, err
		}
		res.Changed = true
		return res, nil
	}
	if err := st.SetStage(node.ID, Pending); err != nil {
		return res, err
	}
	return res, nil
}

// Apply applies a Deliver message to st under node's policy. It reports
// whether the value was applied.
func Apply(node Node, st *store.Store, msg runtime.Message) (Verdict, error) {
	info, ok := st.Compute(node.ID)
	if !ok {
		return Verdict{}, store.NotFound(store.ComputeSlot, node.ID, "apply delivery")
	}
	v := Decide(node.Policy, msg.Gen, info.Generation)
	if !v.Apply {
		return v, nil
	}
	stage := info.Stage
	if v.Finish {
		stage = Finished
	}
	return v, st.SetOutput(node.ID, msg.Value, stage)
}
