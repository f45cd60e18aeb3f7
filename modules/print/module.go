package print

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print command.
type Input struct {
	Title string `cty:"title"`
}

// OnPrint writes every value captured in the command's snapshot, one per line
// as name = json, states first.
func OnPrint(ctx context.Context, call *registry.CommandCall) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Printing snapshot", "states", len(call.States), "computes", len(call.Computes))

	title := call.Command
	if in, ok := call.Input.(*Input); ok && in.Title != "" {
		title = in.Title
	}
	if _, err := fmt.Fprintf(call.Stdout, "%s:\n", title); err != nil {
		return err
	}
	if err := printGroup(call, call.States); err != nil {
		return err
	}
	return printGroup(call, call.Computes)
}

func printGroup(call *registry.CommandCall, values map[string]cty.Value) error {
	for _, name := range slices.Sorted(maps.Keys(values)) {
		v := values[name]
		if v.IsNull() {
			if _, err := fmt.Fprintf(call.Stdout, "      %s = (null)\n", name); err != nil {
				return err
			}
			continue
		}
		raw, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", name, err)
		}
		if _, err := fmt.Fprintf(call.Stdout, "      %s = %s\n", name, raw); err != nil {
			return err
		}
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCommand("print", &registry.CommandHandler{
		NewInput: func() any { return new(Input) },
		Fn:       OnPrint,
	})
}
