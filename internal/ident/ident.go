package ident

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Kind separates the key spaces of manifest-declared identities.
type Kind string

const (
	// KindState names a manifest state.
	KindState Kind = "state"
	// KindCompute names a manifest compute.
	KindCompute Kind = "compute"
	// KindCommand names a manifest command.
	KindCommand Kind = "command"
)

// ID is an opaque, comparable identity. The zero value is not a valid identity.
type ID struct {
	key string
}

// typeKeys caches the key computed for each Go type so repeated lookups on hot
// paths (bundles, snapshots) do not rebuild the string.
var typeKeys sync.Map // Key: reflect.Type, Value: string

// Of returns the identity of the concrete type T.
//
// The key is the fully qualified type name, so it is stable for the lifetime of
// the process and never shared by two different types. Unnamed types such as
// []int have no stable package path and are rejected with a panic; declare a
// named type instead.
func Of[T any]() ID {
	t := reflect.TypeFor[T]()
	if k, ok := typeKeys.Load(t); ok {
		return ID{key: k.(string)}
	}
	if t.Name() == "" {
		panic(fmt.Sprintf("ident: type %s is unnamed and cannot be used as an identity", t))
	}
	key := "go:" + t.String()
	if t.PkgPath() != "" {
		key = "go:" + t.PkgPath() + "." + t.Name()
	}
	typeKeys.Store(t, key)
	return ID{key: key}
}

// Named returns the identity of a manifest-declared value.
func Named(kind Kind, name string) ID {
	return ID{key: string(kind) + "." + name}
}

// Parse reads the canonical string form of a named identity, e.g. "state.counter".
func Parse(raw string) (ID, error) {
	kind, name, ok := strings.Cut(raw, ".")
	if !ok || name == "" {
		return ID{}, fmt.Errorf("invalid identity %q: expected <kind>.<name>", raw)
	}
	switch Kind(kind) {
	case KindState, KindCompute, KindCommand:
	default:
		return ID{}, fmt.Errorf("invalid identity %q: unknown kind %q", raw, kind)
	}
	if strings.ContainsAny(name, " \t\n") {
		return ID{}, fmt.Errorf("invalid identity %q: name contains whitespace", raw)
	}
	return Named(Kind(kind), name), nil
}

// String returns the canonical key of the identity.
func (id ID) String() string {
	return id.key
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.key == ""
}

// Name returns the short name of the identity: the manifest name for named
// identities, the type name for Go types.
func (id ID) Name() string {
	if after, ok := strings.CutPrefix(id.key, "go:"); ok {
		if i := strings.LastIndexByte(after, '/'); i >= 0 {
			after = after[i+1:]
		}
		return after
	}
	_, name, _ := strings.Cut(id.key, ".")
	return name
}

// Compare orders identities by key. It is the total order used wherever the
// runtime needs determinism (graph traversal, error reports, logs).
func Compare(a, b ID) int {
	return strings.Compare(a.key, b.key)
}

// Sort sorts ids in place by Compare.
func Sort(ids []ID) {
	slices.SortFunc(ids, Compare)
}

// Strings renders ids for log attributes and error messages.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
