package manifest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/specialistvlad/computegrid/internal/store"
)

// Check validates the names a model refers to: every name is declared once,
// every dependency exists, expressions only read declared dependencies and
// every fetch names a declared client. All problems are reported together.
func (m *Model) Check() error {
	var errs []error
	errs = append(errs, m.checkDuplicates()...)

	states, computes := m.stateNames(), m.computeNames()
	for _, c := range m.Computes {
		breadcrumb := "deps of " + c.ID().String()
		errs = append(errs, checkDeps(breadcrumb, c.States, c.Computes, states, computes)...)
		if slices.Contains(c.Computes, c.Name) {
			errs = append(errs, fmt.Errorf("compute '%s' depends on itself", c.Name))
		}

		allowed := append(slices.Clone(c.States), c.Computes...)
		var msgs []string
		if c.Value != nil {
			msgs = append(msgs, checkExpression(c.Name, "value", c.Value, allowed)...)
		}
		if c.Fetch != nil {
			if c.Fetch.Data != nil {
				msgs = append(msgs, checkExpression(c.Name, "fetch data", c.Fetch.Data, allowed)...)
			}
			if m.client(c.Fetch.Client) == nil {
				msgs = append(msgs, fmt.Sprintf("compute '%s': fetch uses undeclared client '%s'%s",
					c.Name, c.Fetch.Client, hint(c.Fetch.Client, m.clientNames())))
			}
		}
		for _, msg := range msgs {
			errs = append(errs, errors.New(msg))
		}
	}

	for _, c := range m.Commands {
		breadcrumb := "deps of command." + c.Name
		errs = append(errs, checkDeps(breadcrumb, c.States, c.Computes, states, computes)...)
	}
	return errors.Join(errs...)
}

func (m *Model) checkDuplicates() []error {
	var errs []error
	seen := make(map[string]string)
	claim := func(kind, name string) {
		if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("%s '%s' is already declared as a %s", kind, name, prev))
			return
		}
		seen[name] = kind
	}
	for _, s := range m.States {
		claim("state", s.Name)
	}
	for _, c := range m.Computes {
		claim("compute", c.Name)
	}

	commands := make(map[string]struct{})
	for _, c := range m.Commands {
		if _, ok := commands[c.Name]; ok {
			errs = append(errs, fmt.Errorf("command '%s' is declared more than once", c.Name))
		}
		commands[c.Name] = struct{}{}
	}
	clients := make(map[string]struct{})
	for _, c := range m.Clients {
		if _, ok := clients[c.Name]; ok {
			errs = append(errs, fmt.Errorf("client '%s' is declared more than once", c.Name))
		}
		clients[c.Name] = struct{}{}
	}
	return errs
}

func checkDeps(breadcrumb string, wantStates, wantComputes, states, computes []string) []error {
	var errs []error
	for _, name := range wantStates {
		if !slices.Contains(states, name) {
			e := store.NotFound(store.StateSlot, ident.Named(ident.KindState, name), breadcrumb)
			e.Hint = suggestion(name, states)
			errs = append(errs, e)
		}
	}
	for _, name := range wantComputes {
		if !slices.Contains(computes, name) {
			e := store.NotFound(store.ComputeSlot, ident.Named(ident.KindCompute, name), breadcrumb)
			e.Hint = suggestion(name, computes)
			errs = append(errs, e)
		}
	}
	return errs
}

func suggestion(name string, candidates []string) string {
	if s := registry.Suggest(name, candidates); s != "" {
		return fmt.Sprintf("did you mean '%s'?", s)
	}
	return ""
}

// hint is suggestion formatted as a trailing clause.
func hint(name string, candidates []string) string {
	if s := suggestion(name, candidates); s != "" {
		return " (" + s + ")"
	}
	return ""
}
