package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/computegrid/internal/command"
	"github.com/specialistvlad/computegrid/internal/engine"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Installed is a model bound to an engine.
type Installed struct {
	engine   *engine.Engine
	model    *Model
	commands map[string]command.Command

	mu       sync.Mutex
	failures []error
}

// Command returns the installed command called name.
func (in *Installed) Command(name string) (command.Command, error) {
	cmd, ok := in.commands[name]
	if !ok {
		return nil, fmt.Errorf("command '%s' is not declared%s", name, hint(name, in.model.commandNames()))
	}
	return cmd, nil
}

// Dispatch runs the command called name against a fresh snapshot.
func (in *Installed) Dispatch(ctx context.Context, name string) (command.Receipt, error) {
	cmd, err := in.Command(name)
	if err != nil {
		return command.Receipt{}, err
	}
	return in.engine.Dispatch(ctx, cmd)
}

// Set parses an assignment of the form name=expr and queues the value for
// the state called name. The expression may call functions but read no
// variables.
func (in *Installed) Set(assignment string) error {
	name, src, ok := strings.Cut(assignment, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("invalid assignment %q, expected name=expression", assignment)
	}
	s := in.model.state(name)
	if s == nil {
		return fmt.Errorf("cannot set undeclared state '%s'%s", name, hint(name, in.model.stateNames()))
	}

	expr, diags := hclsyntax.ParseExpression([]byte(src), "--set "+name, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return fmt.Errorf("state '%s': %w", name, diags)
	}
	v, diags := expr.Value(evalContext(nil))
	if diags.HasErrors() {
		return fmt.Errorf("state '%s': %w", name, diags)
	}
	v, err := conform(v, s.Type)
	if err != nil {
		return fmt.Errorf("state '%s': %w", name, err)
	}
	if !in.engine.SetNamed(s.ID(), v) {
		return fmt.Errorf("state '%s': update queue is closed", name)
	}
	return nil
}

// Outputs returns the cached value of every evaluated compute by name.
func (in *Installed) Outputs() map[string]cty.Value {
	out := make(map[string]cty.Value)
	for _, c := range in.model.Computes {
		if v, ok := in.engine.CachedNamed(c.ID()); ok {
			out[c.Name] = asCty(v)
		}
	}
	return out
}

// RenderJSON writes Outputs as an indented JSON object with sorted keys.
func (in *Installed) RenderJSON(w io.Writer) error {
	outputs := in.Outputs()
	raw := make(map[string]json.RawMessage, len(outputs))
	for name, v := range outputs {
		if v.IsNull() || !v.IsWhollyKnown() {
			raw[name] = json.RawMessage("null")
			continue
		}
		b, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
		if err != nil {
			return fmt.Errorf("compute '%s': %w", name, err)
		}
		raw[name] = b
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// Failures returns every evaluation failure recorded so far, joined.
func (in *Installed) Failures() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return errors.Join(in.failures...)
}
