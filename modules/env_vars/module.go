package env_vars

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the env_lookup step.
type Input struct {
	Default string `cty:"default"`
}

// OnEnvLookup returns the value of the environment variable named by the
// compute's single string dependency, or the default when it is unset.
func OnEnvLookup(ctx context.Context, call *registry.StepCall) (any, error) {
	if len(call.Deps) != 1 {
		return nil, fmt.Errorf("env_lookup needs exactly one dependency naming the variable, got %d", len(call.Deps))
	}
	var name cty.Value
	for _, v := range call.Deps {
		name = v
	}
	if name.IsNull() || !name.Type().Equals(cty.String) {
		return nil, fmt.Errorf("env_lookup dependency must be a string, got %s", name.Type().FriendlyName())
	}

	in, _ := call.Input.(*Input)
	if v, ok := os.LookupEnv(name.AsString()); ok {
		return v, nil
	}
	if in != nil {
		return in.Default, nil
	}
	return "", nil
}

// OnEnvVars returns every environment variable whose name starts with the
// prefix held by the compute's dependency, or all of them when it has none.
func OnEnvVars(ctx context.Context, call *registry.StepCall) (any, error) {
	prefix := ""
	for _, v := range call.Deps {
		if !v.IsNull() && v.Type().Equals(cty.String) {
			prefix = v.AsString()
		}
	}
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && strings.HasPrefix(pair[0], prefix) {
			envMap[pair[0]] = pair[1]
		}
	}
	if len(envMap) == 0 {
		return cty.MapValEmpty(cty.String), nil
	}
	return envMap, nil
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("env_lookup", &registry.StepHandler{
		NewInput: func() any { return new(Input) },
		Fn:       OnEnvLookup,
	})
	r.RegisterStep("env_vars", &registry.StepHandler{Fn: OnEnvVars})
}
