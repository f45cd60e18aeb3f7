package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/graph"
	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func st(name string) ident.ID { return ident.Named(ident.KindState, name) }
func cp(name string) ident.ID { return ident.Named(ident.KindCompute, name) }

func TestQueue_FIFO(t *testing.T) {
	s, r := NewQueue()
	for i := range 3 {
		require.True(t, s.Send(Message{Kind: SetState, ID: st("n"), Value: i}))
	}

	m, ok := r.TryRecv()
	require.True(t, ok)
	assert.Equal(t, 0, m.Value)

	rest := r.Drain()
	require.Len(t, rest, 2)
	assert.Equal(t, 1, rest[0].Value)
	assert.Equal(t, 2, rest[1].Value)

	_, ok = r.TryRecv()
	assert.False(t, ok)
	assert.Empty(t, r.Drain())
}

func TestQueue_ManyProducersOneConsumer(t *testing.T) {
	s, r := NewQueue()
	const producers, perProducer = 8, 250

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			local := s // copies share the queue
			for i := range perProducer {
				local.Send(Message{Kind: SetState, ID: st(fmt.Sprint(p)), Value: i})
			}
		}(p)
	}
	wg.Wait()

	msgs := r.Drain()
	require.Len(t, msgs, producers*perProducer)

	// Each producer's own messages keep their relative order.
	last := make(map[ident.ID]int)
	for _, m := range msgs {
		prev, seen := last[m.ID]
		if seen {
			assert.Greater(t, m.Value.(int), prev)
		}
		last[m.ID] = m.Value.(int)
	}
	sent, dropped := r.Stats()
	assert.Equal(t, uint64(producers*perProducer), sent)
	assert.Zero(t, dropped)
}

func TestRuntime_CloseDropsLaterSends(t *testing.T) {
	rt := New()
	rt.Sender().Send(Message{Kind: Trigger, ID: cp("a")})
	rt.Close()

	assert.False(t, rt.Sender().Send(Message{Kind: Trigger, ID: cp("a")}))
	assert.Zero(t, rt.Receiver().Len())
	_, dropped := rt.Receiver().Stats()
	assert.Equal(t, uint64(1), dropped)
	assert.False(t, Sender{}.Send(Message{}))
}

func TestRuntime_RecordAndOrder(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	rt := New()
	rt.AddState(st("counter"))
	require.NoError(t, rt.Record(ctx, cp("doubled"), []ident.ID{st("counter")}, nil))
	require.NoError(t, rt.Record(ctx, cp("label"), nil, []ident.ID{cp("doubled")}))

	require.NoError(t, rt.VerifyDeps())
	order, err := rt.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"state.counter", "compute.doubled", "compute.label"}, ident.Strings(order))

	deps, err := rt.Graph().Dependencies(cp("label"))
	require.NoError(t, err)
	assert.Equal(t, []ident.ID{cp("doubled")}, deps)
}

func TestRuntime_RecordRejectsOverlappingLists(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	rt := New()
	err := rt.Record(ctx, cp("x"), []ident.ID{cp("y")}, []ident.ID{cp("y")})
	assert.ErrorContains(t, err, "both a state and a compute dependency")
}

func TestRuntime_VerifyDepsReportsCycle(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	rt := New()
	require.NoError(t, rt.Record(ctx, cp("cycle_a"), nil, []ident.ID{cp("cycle_b")}))
	require.NoError(t, rt.Record(ctx, cp("cycle_b"), nil, []ident.ID{cp("cycle_a")}))

	err := rt.VerifyDeps()
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrCycle))

	var cycleErr *graph.CycleError[ident.ID]
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []ident.ID{cp("cycle_a"), cp("cycle_b")}, cycleErr.Members())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "deliver", Deliver.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
