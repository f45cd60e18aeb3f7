package snapshot

import (
	"fmt"
	"maps"
	"reflect"

	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/store"
)

// Cloner is implemented by values that own mutable memory and must be deep
// copied into a snapshot. Clone must return a value of the same type.
type Cloner interface {
	Clone() any
}

// Source is what snapshots are captured from.
type Source interface {
	StateValue(id ident.ID) (any, bool)
	Compute(id ident.ID) (store.ComputeInfo, bool)
}

// StateReader is implemented by snapshots holding state values.
type StateReader interface {
	State(id ident.ID) (any, bool)
}

// ComputeReader is implemented by snapshots holding compute outputs.
type ComputeReader interface {
	Compute(id ident.ID) (any, bool)
}

// State is a frozen copy of some state values.
type State struct {
	values map[ident.ID]any
}

// CaptureStates copies the current value of every id from src.
func CaptureStates(src Source, ids []ident.ID) (*State, error) {
	s := &State{values: make(map[ident.ID]any, len(ids))}
	for _, id := range ids {
		v, ok := src.StateValue(id)
		if !ok {
			return nil, store.NotFound(store.StateSlot, id, "snapshot")
		}
		s.values[id] = copyValue(v)
	}
	return s, nil
}

// State returns the captured value of id.
func (s *State) State(id ident.ID) (any, bool) {
	v, ok := s.values[id]
	return v, ok
}

// IDs returns the captured identities in order.
func (s *State) IDs() []ident.ID { return sortedKeys(s.values) }

// Len returns the number of captured values.
func (s *State) Len() int { return len(s.values) }

// Entry is one captured compute output.
type Entry struct {
	Value any
	Stage store.Stage
}

// Compute is a frozen copy of some compute outputs. Computes that were never
// evaluated are not captured.
type Compute struct {
	entries map[ident.ID]Entry
}

// CaptureComputes copies the cached output of every evaluated id from src.
// An unregistered id is an error; an unevaluated one is skipped.
func CaptureComputes(src Source, ids []ident.ID) (*Compute, error) {
	c := &Compute{entries: make(map[ident.ID]Entry, len(ids))}
	for _, id := range ids {
		info, ok := src.Compute(id)
		if !ok {
			return nil, store.NotFound(store.ComputeSlot, id, "snapshot")
		}
		if !info.Evaluated {
			continue
		}
		c.entries[id] = Entry{Value: copyValue(info.Value), Stage: info.Stage}
	}
	return c, nil
}

// Compute returns the captured output of id.
func (c *Compute) Compute(id ident.ID) (any, bool) {
	e, ok := c.entries[id]
	return e.Value, ok
}

// Entry returns the captured output of id with its stage.
func (c *Compute) Entry(id ident.ID) (Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// IDs returns the captured identities in order.
func (c *Compute) IDs() []ident.ID { return sortedKeys(c.entries) }

// Len returns the number of captured outputs.
func (c *Compute) Len() int { return len(c.entries) }

// Command bundles the state and compute snapshots handed to one command.
type Command struct {
	states   *State
	computes *Compute
}

// Capture builds a Command snapshot from src.
func Capture(src Source, states, computes []ident.ID) (*Command, error) {
	s, err := CaptureStates(src, states)
	if err != nil {
		return nil, err
	}
	c, err := CaptureComputes(src, computes)
	if err != nil {
		return nil, err
	}
	return &Command{states: s, computes: c}, nil
}

func (c *Command) States() *State     { return c.states }
func (c *Command) Computes() *Compute { return c.computes }

func (c *Command) State(id ident.ID) (any, bool)   { return c.states.State(id) }
func (c *Command) Compute(id ident.ID) (any, bool) { return c.computes.Compute(id) }

// StateOf returns the captured value of state T. It panics if the value under
// T's identity is not a T.
func StateOf[T any](r StateReader) (T, bool) {
	id := ident.Of[T]()
	v, ok := r.State(id)
	return as[T](id, v, ok)
}

// ComputeOf returns the captured output of compute T. It panics if the value
// under T's identity is not a T.
func ComputeOf[T any](r ComputeReader) (T, bool) {
	id := ident.Of[T]()
	v, ok := r.Compute(id)
	return as[T](id, v, ok)
}

// MustState is StateOf that also panics when T was not captured.
func MustState[T any](r StateReader) T {
	v, ok := StateOf[T](r)
	if !ok {
		panic(fmt.Sprintf("snapshot: state %s was not captured", ident.Of[T]()))
	}
	return v
}

// MustCompute is ComputeOf that also panics when T was not captured.
func MustCompute[T any](r ComputeReader) T {
	v, ok := ComputeOf[T](r)
	if !ok {
		panic(fmt.Sprintf("snapshot: compute %s was not captured", ident.Of[T]()))
	}
	return v
}

func as[T any](id ident.ID, v any, ok bool) (T, bool) {
	var zero T
	if !ok {
		return zero, false
	}
	if v == nil {
		return zero, true
	}
	t, isT := v.(T)
	if !isT {
		panic(fmt.Sprintf("snapshot: %s holds %T, not %s", id, v, reflect.TypeFor[T]()))
	}
	return t, true
}

var clonerType = reflect.TypeFor[Cloner]()

// copyValue detaches v from the live store. Slices, arrays, maps, pointers,
// interfaces and exported struct fields are copied recursively; Cloners
// supply their own copy. Unexported struct fields are copied by value only,
// so opaque immutable values such as cty.Value or time.Time pass through.
func copyValue(v any) any {
	if v == nil {
		return nil
	}
	return deepCopy(reflect.ValueOf(v), make(map[pointerKey]reflect.Value)).Interface()
}

type pointerKey struct {
	typ  reflect.Type
	addr uintptr
}

// deepCopy returns a copy of rv of the same type. seen maps already copied
// pointers to their copies so shared and cyclic references are preserved.
func deepCopy(rv reflect.Value, seen map[pointerKey]reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return rv
		}
	}
	if rv.CanInterface() && rv.Kind() != reflect.Interface && rv.Type().Implements(clonerType) {
		c := reflect.ValueOf(rv.Interface().(Cloner).Clone())
		if c.IsValid() && c.Type().AssignableTo(rv.Type()) {
			out := reflect.New(rv.Type()).Elem()
			out.Set(c)
			return out
		}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		key := pointerKey{rv.Type(), rv.Pointer()}
		if c, ok := seen[key]; ok {
			return c
		}
		out := reflect.New(rv.Type().Elem())
		seen[key] = out
		out.Elem().Set(deepCopy(rv.Elem(), seen))
		return out
	case reflect.Interface:
		out := reflect.New(rv.Type()).Elem()
		out.Set(deepCopy(rv.Elem(), seen))
		return out
	case reflect.Struct:
		out := reflect.New(rv.Type()).Elem()
		out.Set(rv)
		for i := range rv.NumField() {
			if rv.Type().Field(i).IsExported() {
				out.Field(i).Set(deepCopy(rv.Field(i), seen))
			}
		}
		return out
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := range rv.Len() {
			out.Index(i).Set(deepCopy(rv.Index(i), seen))
		}
		return out
	case reflect.Slice:
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		if flat(rv.Type().Elem()) {
			reflect.Copy(out, rv)
			return out
		}
		for i := range rv.Len() {
			out.Index(i).Set(deepCopy(rv.Index(i), seen))
		}
		return out
	case reflect.Map:
		// Keys are comparable and kept as they are.
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value(), seen))
		}
		return out
	default:
		return rv
	}
}

// flat reports whether values of t hold no references.
func flat(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return !t.Implements(clonerType)
	default:
		return false
	}
}

func sortedKeys[V any](m map[ident.ID]V) []ident.ID {
	ids := make([]ident.ID, 0, len(m))
	for id := range maps.Keys(m) {
		ids = append(ids, id)
	}
	ident.Sort(ids)
	return ids
}
