package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// Module is the interface that all modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// StepCall is what a step handler receives for one execution of a compute.
type StepCall struct {
	// Compute is the manifest name of the compute.
	Compute string
	// Deps holds the current value of every declared dependency by name.
	Deps map[string]cty.Value
	// Input is the decoded `args` of the compute, or nil when the handler
	// takes none.
	Input any
}

// StepHandler evaluates a manifest compute.
type StepHandler struct {
	// NewInput returns a pointer to the struct `args` is decoded into.
	NewInput func() any
	// Async handlers run off the engine goroutine and deliver when done.
	Async bool
	// Fn returns a cty.Value or any Go value gocty can convert.
	Fn func(ctx context.Context, call *StepCall) (any, error)
}

// Effects lets a command queue mutations by manifest name.
type Effects interface {
	SetState(name string, v cty.Value) error
	Deliver(name string, v cty.Value) error
	Trigger(name string) error
}

// CommandCall is what a command handler receives for one dispatch.
type CommandCall struct {
	Command    string
	DispatchID string
	States     map[string]cty.Value
	Computes   map[string]cty.Value
	Input      any
	Stdout     io.Writer
	Effects    Effects
}

// CommandHandler runs a manifest command.
type CommandHandler struct {
	NewInput func() any
	// Background commands run on the worker pool.
	Background bool
	Fn         func(ctx context.Context, call *CommandCall) error
}

// Registry holds all the registered handlers for a single application
// instance.
type Registry struct {
	steps    map[string]*StepHandler
	commands map[string]*CommandHandler
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		steps:    make(map[string]*StepHandler),
		commands: make(map[string]*CommandHandler),
	}
}

// Use registers every module.
func (r *Registry) Use(modules ...Module) *Registry {
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterStep registers a Go function for manifest computes.
func (r *Registry) RegisterStep(name string, h *StepHandler) {
	if _, exists := r.steps[name]; exists {
		panic(fmt.Sprintf("step handler with name '%s' already registered", name))
	}
	if h == nil || h.Fn == nil {
		panic(fmt.Sprintf("step handler '%s' has no function", name))
	}
	slog.Debug("Registering step handler.", "name", name, "async", h.Async)
	r.steps[name] = h
}

// RegisterCommand registers a Go function for manifest commands.
func (r *Registry) RegisterCommand(name string, h *CommandHandler) {
	if _, exists := r.commands[name]; exists {
		panic(fmt.Sprintf("command handler with name '%s' already registered", name))
	}
	if h == nil || h.Fn == nil {
		panic(fmt.Sprintf("command handler '%s' has no function", name))
	}
	slog.Debug("Registering command handler.", "name", name, "background", h.Background)
	r.commands[name] = h
}

// Step looks up a step handler.
func (r *Registry) Step(name string) (*StepHandler, bool) {
	h, ok := r.steps[name]
	return h, ok
}

// Command looks up a command handler.
func (r *Registry) Command(name string) (*CommandHandler, bool) {
	h, ok := r.commands[name]
	return h, ok
}

// StepNames returns the registered step handler names, sorted.
func (r *Registry) StepNames() []string { return slices.Sorted(maps.Keys(r.steps)) }

// CommandNames returns the registered command handler names, sorted.
func (r *Registry) CommandNames() []string { return slices.Sorted(maps.Keys(r.commands)) }
