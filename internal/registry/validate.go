package registry

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// UseKind says which handler table a manifest block refers to.
type UseKind string

const (
	StepUse    UseKind = "compute"
	CommandUse UseKind = "command"
)

// Use is one reference from a manifest block to a handler.
type Use struct {
	Kind    UseKind
	Block   string
	Handler string
	// Args is the block's `args` value, null when absent.
	Args cty.Value
}

// Validate performs a strict parity check between manifest blocks and Go
// handlers. It checks that every handler exists and that each block's args
// can be decoded into the handler's input struct. Absent args decode to the
// zero input.
func (r *Registry) Validate(ctx context.Context, uses []Use) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, u := range uses {
		var newInput func() any
		switch u.Kind {
		case StepUse:
			h, ok := r.steps[u.Handler]
			if !ok {
				errs = append(errs, unknownHandler(u, r.StepNames()))
				continue
			}
			newInput = h.NewInput
		case CommandUse:
			h, ok := r.commands[u.Handler]
			if !ok {
				errs = append(errs, unknownHandler(u, r.CommandNames()))
				continue
			}
			newInput = h.NewInput
		default:
			errs = append(errs, fmt.Sprintf("%s '%s': unknown block kind", u.Kind, u.Block))
			continue
		}

		hasArgs := !u.Args.IsNull() && !u.Args.RawEquals(cty.EmptyObjectVal)
		if newInput == nil {
			if hasArgs {
				errs = append(errs, fmt.Sprintf("%s '%s': manifest sets args, but handler '%s' takes no input", u.Kind, u.Block, u.Handler))
			}
			continue
		}

		if u.Args.IsNull() {
			continue
		}
		inputType, err := gocty.ImpliedType(reflect.ValueOf(newInput()).Elem().Interface())
		if err != nil {
			logger.Warn("Handler input has no static cty type, skipping args check.", "handler", u.Handler, "error", err)
			continue
		}
		if extra := unexpectedAttrs(u.Args, inputType); len(extra) > 0 {
			known := slices.Sorted(maps.Keys(inputType.AttributeTypes()))
			for _, name := range extra {
				msg := fmt.Sprintf("%s '%s': args do not match handler '%s' input: unsupported argument '%s'", u.Kind, u.Block, u.Handler, name)
				if s := Suggest(name, known); s != "" {
					msg += fmt.Sprintf(" (did you mean '%s'?)", s)
				}
				errs = append(errs, msg)
			}
			continue
		}
		if _, err := convert.Convert(withZeroAttrs(u.Args, inputType), inputType); err != nil {
			errs = append(errs, fmt.Sprintf("%s '%s': args do not match handler '%s' input %s: %v",
				u.Kind, u.Block, u.Handler, inputType.FriendlyName(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func unknownHandler(u Use, known []string) string {
	msg := fmt.Sprintf("%s '%s': handler '%s' is not registered", u.Kind, u.Block, u.Handler)
	if s := Suggest(u.Handler, known); s != "" {
		msg += fmt.Sprintf(" (did you mean '%s'?)", s)
	}
	return msg
}

// Suggest returns the candidate closest to name, or "" when none is close
// enough to be a plausible typo.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(name)/3) {
		return ""
	}
	return best
}
