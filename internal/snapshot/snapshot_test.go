package snapshot

import (
	"reflect"
	"testing"

	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type score int
type tags []string
type label string

type profile struct {
	Names []string
}

type basket struct {
	Items  []int
	Labels map[string][]string
	Owner  *profile
	Extra  any
}

type matrix [][]int

type node struct {
	Value int
	Next  *node
}

func (p profile) Clone() any {
	return profile{Names: append([]string(nil), p.Names...)}
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New()
	st.RegisterState(ident.Of[score](), reflect.TypeFor[score](), score(0))
	st.RegisterState(ident.Of[tags](), reflect.TypeFor[tags](), tags{"a"})
	st.RegisterState(ident.Of[profile](), reflect.TypeFor[profile](), profile{Names: []string{"x"}})
	st.RegisterCompute(ident.Of[label](), reflect.TypeFor[label](), label(""))
	return st
}

func TestSnapshot_FrozenAfterCapture(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.SetState(ident.Of[score](), score(5)))

	snap, err := Capture(st, []ident.ID{ident.Of[score]()}, nil)
	require.NoError(t, err)

	require.NoError(t, st.SetState(ident.Of[score](), score(9)))

	got, ok := StateOf[score](snap)
	require.True(t, ok)
	assert.Equal(t, score(5), got)
}

func TestSnapshot_CopiesMutableValues(t *testing.T) {
	st := newStore(t)
	snap, err := CaptureStates(st, []ident.ID{ident.Of[tags](), ident.Of[profile]()})
	require.NoError(t, err)

	live, _ := st.StateValue(ident.Of[tags]())
	live.(tags)[0] = "mutated"
	p, _ := st.StateValue(ident.Of[profile]())
	p.(profile).Names[0] = "mutated"

	assert.Equal(t, tags{"a"}, MustState[tags](snap))
	assert.Equal(t, []string{"x"}, MustState[profile](snap).Names)
}

func TestSnapshot_DeepCopiesNestedValues(t *testing.T) {
	st := store.New()
	st.RegisterState(ident.Of[basket](), reflect.TypeFor[basket](), basket{
		Items:  []int{5},
		Labels: map[string][]string{"k": {"v"}},
		Owner:  &profile{Names: []string{"o"}},
		Extra:  []int{1},
	})
	st.RegisterState(ident.Of[matrix](), reflect.TypeFor[matrix](), matrix{{5}})

	snap, err := CaptureStates(st, []ident.ID{ident.Of[basket](), ident.Of[matrix]()})
	require.NoError(t, err)

	require.NoError(t, st.ModifyState(ident.Of[basket](), func(v any) any {
		b := v.(basket)
		b.Items[0] = 9
		b.Labels["k"][0] = "mutated"
		b.Owner.Names[0] = "mutated"
		b.Extra.([]int)[0] = 9
		return b
	}))
	require.NoError(t, st.ModifyState(ident.Of[matrix](), func(v any) any {
		m := v.(matrix)
		m[0][0] = 9
		return m
	}))

	b := MustState[basket](snap)
	assert.Equal(t, []int{5}, b.Items)
	assert.Equal(t, []string{"v"}, b.Labels["k"])
	assert.Equal(t, []string{"o"}, b.Owner.Names)
	assert.Equal(t, []int{1}, b.Extra)
	assert.Equal(t, matrix{{5}}, MustState[matrix](snap))
}

func TestSnapshot_CopiesCyclicPointers(t *testing.T) {
	head := &node{Value: 1}
	head.Next = &node{Value: 2, Next: head}

	got := copyValue(head).(*node)
	head.Next.Value = 9

	assert.NotSame(t, head, got)
	assert.Equal(t, 2, got.Next.Value)
	assert.Same(t, got, got.Next.Next)
}

func TestSnapshot_WrongTypePanics(t *testing.T) {
	st := newStore(t)
	snap, err := Capture(st, []ident.ID{ident.Of[score]()}, nil)
	require.NoError(t, err)

	// A named identity whose key matches nothing in the snapshot is absent.
	_, ok := snap.State(ident.Named(ident.KindState, "score"))
	assert.False(t, ok)

	bad := &State{values: map[ident.ID]any{ident.Of[score](): "five"}}
	assert.PanicsWithValue(t,
		"snapshot: "+ident.Of[score]().String()+" holds string, not snapshot.score",
		func() { _, _ = StateOf[score](bad) })
}

func TestSnapshot_AbsentValues(t *testing.T) {
	st := newStore(t)
	snap, err := Capture(st, nil, []ident.ID{ident.Of[label]()})
	require.NoError(t, err)

	_, ok := ComputeOf[label](snap)
	assert.False(t, ok, "unevaluated computes are not captured")
	assert.Equal(t, 0, snap.Computes().Len())

	assert.Panics(t, func() { MustState[score](snap) })
}

func TestSnapshot_CapturesEvaluatedComputes(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.SetOutput(ident.Of[label](), label("ready"), store.Pending))

	c, err := CaptureComputes(st, []ident.ID{ident.Of[label]()})
	require.NoError(t, err)

	e, ok := c.Entry(ident.Of[label]())
	require.True(t, ok)
	assert.Equal(t, label("ready"), e.Value)
	assert.Equal(t, store.Pending, e.Stage)
	assert.Equal(t, label("ready"), MustCompute[label](c))
	assert.Equal(t, []ident.ID{ident.Of[label]()}, c.IDs())
}

func TestSnapshot_UnregisteredIsNotFound(t *testing.T) {
	st := newStore(t)
	missing := ident.Named(ident.KindCompute, "ghost")

	_, err := Capture(st, nil, []ident.ID{missing})
	require.ErrorIs(t, err, store.ErrComputeNotFound)
	assert.Contains(t, err.Error(), "compute.ghost")
}
