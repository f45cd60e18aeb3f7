package manifest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/computegrid/internal/command"
	"github.com/specialistvlad/computegrid/internal/compute"
	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/dep"
	"github.com/specialistvlad/computegrid/internal/engine"
	"github.com/specialistvlad/computegrid/internal/fetch"
	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/specialistvlad/computegrid/internal/snapshot"
	"github.com/zclconf/go-cty/cty"
)

// Options carries what Install needs besides the model.
type Options struct {
	// Stdout is handed to command handlers. Nil means os.Stdout.
	Stdout io.Writer
	// Clients maps client names to connected services.
	Clients map[string]fetch.Service
}

// Install registers every state, compute and command of m into e. It never
// evaluates anything.
//
// A compute whose expression, handler or fetch fails is not left Pending: the
// error is logged and recorded in Failures, and the compute outputs a null of
// its type.
func Install(ctx context.Context, e *engine.Engine, m *Model, reg *registry.Registry, opts Options) (*Installed, error) {
	logger := ctxlog.FromContext(ctx)
	if err := reg.Validate(ctx, m.uses()); err != nil {
		return nil, err
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	in := &Installed{
		engine:   e,
		model:    m,
		commands: make(map[string]command.Command),
	}

	for _, s := range m.States {
		def := s.Default
		if def == cty.NilVal {
			def = cty.NullVal(s.Type)
		}
		engine.RegisterNamedState(e, s.ID(), def)
		logger.Debug("Installed state.", "state", s.Name, "type", s.Type.FriendlyName())
	}

	for _, c := range m.Computes {
		step, err := in.step(c, reg, opts)
		if err != nil {
			return nil, err
		}
		def := compute.Def[any]{
			States:   ids(ident.KindState, c.States),
			Computes: ids(ident.KindCompute, c.Computes),
			Policy:   c.Policy,
			Step:     step,
		}
		initial := c.Default
		if initial == cty.NilVal || initial.IsNull() {
			initial = cty.NullVal(c.Type)
		}
		if err := engine.RegisterNamedCompute(ctx, e, c.ID(), initial, def); err != nil {
			return nil, fmt.Errorf("compute '%s': %w", c.Name, err)
		}
		logger.Debug("Installed compute.", "compute", c.Name, "policy", c.Policy.String())
	}

	for _, c := range m.Commands {
		h, _ := reg.Command(c.Handler)
		in.commands[c.Name] = in.command(c, h, opts.Stdout)
		logger.Debug("Installed command.", "command", c.Name, "handler", c.Handler)
	}

	logger.Info("✅ Manifest installed.",
		"states", len(m.States),
		"computes", len(m.Computes),
		"commands", len(m.Commands),
	)
	return in, nil
}

func (m *Model) uses() []registry.Use {
	var out []registry.Use
	for _, c := range m.Computes {
		if c.Handler != "" {
			out = append(out, registry.Use{Kind: registry.StepUse, Block: c.Name, Handler: c.Handler, Args: c.Args})
		}
	}
	for _, c := range m.Commands {
		out = append(out, registry.Use{Kind: registry.CommandUse, Block: c.Name, Handler: c.Handler, Args: c.Args})
	}
	return out
}

func ids(kind ident.Kind, names []string) []ident.ID {
	out := make([]ident.ID, len(names))
	for i, n := range names {
		out[i] = ident.Named(kind, n)
	}
	return out
}

// depValues collects the bundle into variables named after the dependencies.
func depValues(deps *dep.Bundle) map[string]cty.Value {
	vars := make(map[string]cty.Value, deps.Len())
	deps.Each(func(id ident.ID, v any) {
		vars[id.Name()] = asCty(v)
	})
	return vars
}

func asCty(v any) cty.Value {
	if cv, ok := v.(cty.Value); ok && cv != cty.NilVal {
		return cv
	}
	return cty.NullVal(cty.DynamicPseudoType)
}

func (in *Installed) step(c *Compute, reg *registry.Registry, opts Options) (compute.StepFunc[any], error) {
	switch {
	case c.Value != nil:
		return func(ctx context.Context, deps *dep.Bundle, _ compute.Updater[any]) compute.Outcome[any] {
			v, diags := c.Value.Value(evalContext(depValues(deps)))
			if diags.HasErrors() {
				return compute.Done[any](in.fail(ctx, c, fmt.Errorf("value: %w", diags)))
			}
			return compute.Done[any](in.result(ctx, c, v, nil))
		}, nil

	case c.Handler != "":
		h, ok := reg.Step(c.Handler)
		if !ok {
			return nil, fmt.Errorf("compute '%s': handler '%s' is not registered", c.Name, c.Handler)
		}
		return in.handlerStep(c, h), nil

	case c.Fetch != nil:
		svc, ok := opts.Clients[c.Fetch.Client]
		if !ok {
			return nil, fmt.Errorf("compute '%s': client '%s' is not connected", c.Name, c.Fetch.Client)
		}
		return in.fetchStep(c, svc), nil
	}
	return nil, fmt.Errorf("compute '%s' has nothing to evaluate", c.Name)
}

func (in *Installed) handlerStep(c *Compute, h *registry.StepHandler) compute.StepFunc[any] {
	return func(ctx context.Context, deps *dep.Bundle, up compute.Updater[any]) compute.Outcome[any] {
		input, err := registry.DecodeInput(ctx, h.NewInput, c.Args)
		if err != nil {
			return compute.Done[any](in.fail(ctx, c, fmt.Errorf("args: %w", err)))
		}
		call := &registry.StepCall{Compute: c.Name, Deps: depValues(deps), Input: input}
		if !h.Async {
			out, err := h.Fn(ctx, call)
			return compute.Done[any](in.converted(ctx, c, out, err))
		}
		go func() {
			out, err := h.Fn(ctx, call)
			up.Deliver(in.converted(ctx, c, out, err))
		}()
		return compute.Await[any]()
	}
}

func (in *Installed) fetchStep(c *Compute, svc fetch.Service) compute.StepFunc[any] {
	return func(ctx context.Context, deps *dep.Bundle, up compute.Updater[any]) compute.Outcome[any] {
		data := cty.NullVal(cty.DynamicPseudoType)
		if c.Fetch.Data != nil {
			v, diags := c.Fetch.Data.Value(evalContext(depValues(deps)))
			if diags.HasErrors() {
				return compute.Done[any](in.fail(ctx, c, fmt.Errorf("fetch data: %w", diags)))
			}
			data = v
		}
		req := fetch.Request{Event: c.Fetch.Event, Reply: c.Fetch.Reply, Data: data}
		fetch.Async(ctx, svc, req, c.Fetch.Timeout, func(v cty.Value, err error) {
			up.Deliver(in.result(ctx, c, v, err))
		})
		return compute.Await[any]()
	}
}

func (in *Installed) converted(ctx context.Context, c *Compute, out any, err error) cty.Value {
	if err != nil {
		return in.fail(ctx, c, err)
	}
	v, err := registry.ToCtyValue(out)
	return in.result(ctx, c, v, err)
}

// result conforms v to the compute's type, or records err.
func (in *Installed) result(ctx context.Context, c *Compute, v cty.Value, err error) cty.Value {
	if err != nil {
		return in.fail(ctx, c, err)
	}
	out, err := conform(v, c.Type)
	if err != nil {
		return in.fail(ctx, c, err)
	}
	return out
}

func (in *Installed) fail(ctx context.Context, c *Compute, err error) cty.Value {
	err = fmt.Errorf("compute '%s': %w", c.Name, err)
	ctxlog.FromContext(ctx).Error("Compute evaluation failed.", "compute", c.Name, "error", err)
	in.mu.Lock()
	in.failures = append(in.failures, err)
	in.mu.Unlock()
	return cty.NullVal(c.Type)
}

func (in *Installed) command(c *Command, h *registry.CommandHandler, stdout io.Writer) command.Command {
	mode := command.Inline
	if c.Background || h.Background {
		mode = command.Background
	}
	states := ids(ident.KindState, c.States)
	computes := ids(ident.KindCompute, c.Computes)
	return command.Func{
		Label:    c.Name,
		States:   states,
		Computes: computes,
		Exec:     mode,
		Fn: func(ctx context.Context, snap *snapshot.Command, out command.Outbox) error {
			input, err := registry.DecodeInput(ctx, h.NewInput, c.Args)
			if err != nil {
				return fmt.Errorf("args: %w", err)
			}
			call := &registry.CommandCall{
				Command:    c.Name,
				DispatchID: out.DispatchID(),
				States:     make(map[string]cty.Value, len(states)),
				Computes:   make(map[string]cty.Value, len(computes)),
				Input:      input,
				Stdout:     stdout,
				Effects:    effects{model: in.model, out: out},
			}
			for _, id := range states {
				v, _ := snap.State(id)
				call.States[id.Name()] = asCty(v)
			}
			for _, id := range computes {
				v, _ := snap.Compute(id)
				call.Computes[id.Name()] = asCty(v)
			}
			return h.Fn(ctx, call)
		},
	}
}

// effects maps manifest names to engine identities for command handlers.
type effects struct {
	model *Model
	out   command.Outbox
}

func (f effects) SetState(name string, v cty.Value) error {
	s := f.model.state(name)
	if s == nil {
		return fmt.Errorf("cannot set undeclared state '%s'%s", name, hint(name, f.model.stateNames()))
	}
	v, err := conform(v, s.Type)
	if err != nil {
		return fmt.Errorf("state '%s': %w", name, err)
	}
	return queued(f.out.SetState(s.ID(), v))
}

func (f effects) Deliver(name string, v cty.Value) error {
	c := f.model.compute(name)
	if c == nil {
		return fmt.Errorf("cannot deliver to undeclared compute '%s'%s", name, hint(name, f.model.computeNames()))
	}
	v, err := conform(v, c.Type)
	if err != nil {
		return fmt.Errorf("compute '%s': %w", name, err)
	}
	return queued(f.out.Deliver(c.ID(), v))
}

func (f effects) Trigger(name string) error {
	c := f.model.compute(name)
	if c == nil {
		return fmt.Errorf("cannot trigger undeclared compute '%s'%s", name, hint(name, f.model.computeNames()))
	}
	return queued(f.out.Trigger(c.ID()))
}

func queued(ok bool) error {
	if !ok {
		return fmt.Errorf("update queue is closed")
	}
	return nil
}
