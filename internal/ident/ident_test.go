package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter int
type label string

func TestOf_StableAndDistinct(t *testing.T) {
	a := Of[counter]()
	b := Of[counter]()
	c := Of[label]()

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "go:github.com/specialistvlad/computegrid/internal/ident.counter", a.String())
	assert.Equal(t, "ident.counter", a.Name())
}

func TestOf_UnnamedTypePanics(t *testing.T) {
	assert.Panics(t, func() { Of[[]int]() })
}

func TestNamed_DisjointFromGoTypes(t *testing.T) {
	s := Named(KindState, "counter")
	c := Named(KindCompute, "counter")

	assert.NotEqual(t, s, c)
	assert.Equal(t, "state.counter", s.String())
	assert.Equal(t, "counter", s.Name())
	assert.NotEqual(t, s, Of[counter]())
}

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		id, err := Parse("compute.doubled")
		require.NoError(t, err)
		assert.Equal(t, Named(KindCompute, "doubled"), id)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Parse("doubled")
		assert.ErrorContains(t, err, "expected <kind>.<name>")

		_, err = Parse("widget.doubled")
		assert.ErrorContains(t, err, "unknown kind")

		_, err = Parse("state.")
		assert.Error(t, err)
	})
}

func TestSortIsTotal(t *testing.T) {
	ids := []ID{Named(KindState, "b"), Named(KindCompute, "z"), Named(KindState, "a")}
	Sort(ids)
	assert.Equal(t, []string{"compute.z", "state.a", "state.b"}, Strings(ids))
	assert.Equal(t, 0, Compare(ids[0], ids[0]))
	assert.True(t, ID{}.IsZero())
}
