package manifest

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions is the function table available to manifest expressions.
var functions = map[string]function.Function{
	"abs":        stdlib.AbsoluteFunc,
	"ceil":       stdlib.CeilFunc,
	"coalesce":   stdlib.CoalesceFunc,
	"concat":     stdlib.ConcatFunc,
	"contains":   stdlib.ContainsFunc,
	"floor":      stdlib.FloorFunc,
	"format":     stdlib.FormatFunc,
	"join":       stdlib.JoinFunc,
	"jsondecode": stdlib.JSONDecodeFunc,
	"jsonencode": stdlib.JSONEncodeFunc,
	"keys":       stdlib.KeysFunc,
	"length":     stdlib.LengthFunc,
	"lower":      stdlib.LowerFunc,
	"max":        stdlib.MaxFunc,
	"min":        stdlib.MinFunc,
	"split":      stdlib.SplitFunc,
	"trimspace":  stdlib.TrimSpaceFunc,
	"upper":      stdlib.UpperFunc,
	"values":     stdlib.ValuesFunc,
}

// absent reports whether expr stands for an attribute that was not set.
// gohcl fills missing optional expressions with a static null.
func absent(expr hcl.Expression) bool {
	if expr == nil {
		return true
	}
	if len(expr.Variables()) > 0 {
		return false
	}
	if _, ok := expr.(hclsyntax.Expression); ok {
		return false
	}
	v, diags := expr.Value(nil)
	return !diags.HasErrors() && v.IsNull()
}

// constValue evaluates an expression that may not reference anything.
func constValue(expr hcl.Expression) (cty.Value, error) {
	if absent(expr) {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	v, diags := expr.Value(&hcl.EvalContext{Functions: functions})
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return v, nil
}

// evalContext exposes vars to an expression.
func evalContext(vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{Variables: vars, Functions: functions}
}

// references returns the sorted root names an expression reads.
func references(expr hcl.Expression) []string {
	if expr == nil {
		return nil
	}
	names := make(map[string]struct{})
	for _, t := range expr.Variables() {
		names[t.RootName()] = struct{}{}
	}
	return slices.Sorted(maps.Keys(names))
}

// functionCalls returns the sorted names of functions an expression calls.
func functionCalls(expr hcl.Expression) []string {
	found := make(map[string]struct{})
	if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
		_ = hclsyntax.VisitAll(syntaxExpr, func(n hclsyntax.Node) hcl.Diagnostics {
			if call, ok := n.(*hclsyntax.FunctionCallExpr); ok {
				found[call.Name] = struct{}{}
			}
			return nil
		})
	}
	return slices.Sorted(maps.Keys(found))
}

// checkExpression verifies that expr only reads names in allowed and only
// calls known functions.
func checkExpression(block, attr string, expr hcl.Expression, allowed []string) []string {
	var errs []string
	for _, name := range references(expr) {
		if !slices.Contains(allowed, name) {
			errs = append(errs, fmt.Sprintf("compute '%s': %s reads '%s', which is not a declared dependency%s",
				block, attr, name, hint(name, allowed)))
		}
	}
	for _, fn := range functionCalls(expr) {
		if _, ok := functions[fn]; !ok {
			errs = append(errs, fmt.Sprintf("compute '%s': %s calls unknown function '%s'%s",
				block, attr, fn, hint(fn, slices.Sorted(maps.Keys(functions)))))
		}
	}
	return errs
}
