package registry

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// DecodeInput decodes args into a fresh input of newInput. It returns nil
// when the handler takes no input, and the zero input when args is null.
func DecodeInput(ctx context.Context, newInput func() any, args cty.Value) (any, error) {
	if newInput == nil {
		return nil, nil
	}
	target := newInput()
	if args.IsNull() {
		return target, nil
	}
	if err := decode(ctx, args, target); err != nil {
		return nil, err
	}
	return target, nil
}

// decode handles the conversion and decoding of a cty.Value into a Go pointer.
func decode(ctx context.Context, val cty.Value, goVal any) error {
	logger := ctxlog.FromContext(ctx)
	valPtr := reflect.ValueOf(goVal)
	if valPtr.Kind() != reflect.Pointer {
		return fmt.Errorf("target for decoding must be a pointer, got %T", goVal)
	}

	impliedType, err := gocty.ImpliedType(valPtr.Elem().Interface())
	if err != nil {
		logger.Debug("Could not imply cty.Type from Go type, attempting direct decoding.", "go_type", valPtr.Elem().Type().String(), "error", err)
		return gocty.FromCtyValue(val, goVal)
	}

	converted, err := convert.Convert(withZeroAttrs(val, impliedType), impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to required type %s: %w", val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}
	if !val.Type().Equals(converted.Type()) {
		logger.Debug("Implicitly converted value type.",
			"from", val.Type().FriendlyName(),
			"to", converted.Type().FriendlyName(),
		)
	}
	return gocty.FromCtyValue(converted, goVal)
}

// ToCtyValue converts a handler result into a cty.Value. cty values pass
// through unchanged; nil becomes a null of dynamic type.
func ToCtyValue(v any) (cty.Value, error) {
	switch tv := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return tv, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// withZeroAttrs adds the attributes of ty that val lacks, set to their zero
// value, so args may leave out any field of an input struct.
func withZeroAttrs(val cty.Value, ty cty.Type) cty.Value {
	if !ty.IsObjectType() || val.IsNull() || !val.IsKnown() || !val.Type().IsObjectType() {
		return val
	}
	attrs := val.AsValueMap()
	if attrs == nil {
		attrs = make(map[string]cty.Value)
	}
	for name, attrTy := range ty.AttributeTypes() {
		if v, ok := attrs[name]; ok {
			attrs[name] = withZeroAttrs(v, attrTy)
			continue
		}
		attrs[name] = zeroValue(attrTy)
	}
	return cty.ObjectVal(attrs)
}

func zeroValue(ty cty.Type) cty.Value {
	switch {
	case ty == cty.String:
		return cty.StringVal("")
	case ty == cty.Number:
		return cty.Zero
	case ty == cty.Bool:
		return cty.False
	case ty.IsListType():
		return cty.ListValEmpty(ty.ElementType())
	case ty.IsMapType():
		return cty.MapValEmpty(ty.ElementType())
	case ty.IsSetType():
		return cty.SetValEmpty(ty.ElementType())
	case ty.IsObjectType():
		return withZeroAttrs(cty.EmptyObjectVal, ty)
	default:
		return cty.NullVal(ty)
	}
}

// unexpectedAttrs lists, sorted, the attributes of val that ty does not have.
func unexpectedAttrs(val cty.Value, ty cty.Type) []string {
	if !ty.IsObjectType() || val.IsNull() || !val.Type().IsObjectType() {
		return nil
	}
	var out []string
	for name := range val.Type().AttributeTypes() {
		if !ty.HasAttribute(name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
