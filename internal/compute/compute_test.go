package compute

import (
	"context"
	"reflect"
	"testing"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/dep"
	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/runtime"
	"github.com/specialistvlad/computegrid/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter int
type doubled int
type fetched string

func testCtx() context.Context {
	return ctxlog.Discard(context.Background())
}

type fixture struct {
	st       *store.Store
	sender   runtime.Sender
	receiver *runtime.Receiver
}

func newFixture() *fixture {
	s, r := runtime.NewQueue()
	st := store.New()
	st.RegisterState(ident.Of[counter](), reflect.TypeFor[counter](), counter(0))
	return &fixture{st: st, sender: s, receiver: r}
}

func (f *fixture) register(node Node, def any) {
	f.st.RegisterCompute(node.ID, node.Type, def)
}

// drain applies every queued delivery and returns the verdicts.
func (f *fixture) drain(t *testing.T, node Node) []Verdict {
	t.Helper()
	var out []Verdict
	for _, m := range f.receiver.Drain() {
		require.Equal(t, runtime.Deliver, m.Kind)
		v, err := Apply(node, f.st, m)
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func doubledDef() Def[doubled] {
	return Def[doubled]{
		States: []ident.ID{ident.Of[counter]()},
		Step: func(_ context.Context, d *dep.Bundle, _ Updater[doubled]) Outcome[doubled] {
			return Done(doubled(2 * dep.State[counter](d)))
		},
	}
}

// asyncDef captures the updater of each execution so the test decides when
// and in which order deliveries happen.
func asyncDef(updaters *[]Updater[fetched], policy Policy) Def[fetched] {
	return Def[fetched]{
		States: []ident.ID{ident.Of[counter]()},
		Policy: policy,
		Step: func(_ context.Context, _ *dep.Bundle, up Updater[fetched]) Outcome[fetched] {
			*updaters = append(*updaters, up)
			return Await[fetched]()
		},
	}
}

func TestRun_FinishedReplacesCachedOutput(t *testing.T) {
	f := newFixture()
	node := doubledDef().Erase(ident.Of[doubled]())
	f.register(node, doubled(0))
	require.NoError(t, f.st.SetState(ident.Of[counter](), counter(5)))

	res, err := Run(testCtx(), node, f.st, f.sender)
	require.NoError(t, err)
	assert.Equal(t, Finished, res.Stage)
	assert.True(t, res.Changed)
	assert.Equal(t, uint64(1), res.Generation)

	info, _ := f.st.Compute(node.ID)
	assert.True(t, info.Evaluated)
	assert.Equal(t, doubled(10), info.Value)
}

func TestRun_MissingDependency(t *testing.T) {
	f := newFixture()
	def := doubledDef()
	def.States = []ident.ID{ident.Named(ident.KindState, "ghost")}
	node := def.Erase(ident.Of[doubled]())
	f.register(node, doubled(0))

	_, err := Run(testCtx(), node, f.st, f.sender)
	var nf *store.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "deps of "+node.ID.String(), nf.Context)
}

func TestRun_UndeclaredReadPanics(t *testing.T) {
	f := newFixture()
	node := Def[doubled]{
		Step: func(_ context.Context, d *dep.Bundle, _ Updater[doubled]) Outcome[doubled] {
			return Done(doubled(dep.State[counter](d)))
		},
	}.Erase(ident.Of[doubled]())
	f.register(node, doubled(0))

	assert.Panics(t, func() { _, _ = Run(testCtx(), node, f.st, f.sender) })
}

func TestLatestOnly_NewestStartedWins(t *testing.T) {
	orders := map[string][]int{
		"older delivers first": {0, 1},
		"newer delivers first": {1, 0},
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			var ups []Updater[fetched]
			node := asyncDef(&ups, LatestOnly).Erase(ident.Of[fetched]())
			f.register(node, fetched(""))

			// Start E1 then E2 before either delivers.
			for range 2 {
				res, err := Run(testCtx(), node, f.st, f.sender)
				require.NoError(t, err)
				assert.Equal(t, Pending, res.Stage)
			}
			require.Len(t, ups, 2)
			payloads := []fetched{"E1", "E2"}

			for _, i := range order {
				ups[i].Deliver(payloads[i])
			}
			f.drain(t, node)

			info, _ := f.st.Compute(node.ID)
			assert.Equal(t, fetched("E2"), info.Value)
			assert.Equal(t, Finished, info.Stage)
		})
	}
}

func TestLatestOnly_SupersededDeliveryKeepsPending(t *testing.T) {
	f := newFixture()
	var ups []Updater[fetched]
	node := asyncDef(&ups, LatestOnly).Erase(ident.Of[fetched]())
	f.register(node, fetched(""))

	_, err := Run(testCtx(), node, f.st, f.sender)
	require.NoError(t, err)
	_, err = Run(testCtx(), node, f.st, f.sender)
	require.NoError(t, err)

	assert.True(t, ups[0].Superseded())
	assert.False(t, ups[1].Superseded())

	ups[0].Deliver("stale")
	verdicts := f.drain(t, node)
	require.Len(t, verdicts, 1)
	assert.False(t, verdicts[0].Apply)

	info, _ := f.st.Compute(node.ID)
	assert.Equal(t, Pending, info.Stage)
	assert.False(t, info.Evaluated)
}

func TestPending_KeepsPreviousFinishedValue(t *testing.T) {
	f := newFixture()
	var ups []Updater[fetched]
	node := asyncDef(&ups, LatestOnly).Erase(ident.Of[fetched]())
	f.register(node, fetched(""))

	_, err := Run(testCtx(), node, f.st, f.sender)
	require.NoError(t, err)
	ups[0].Deliver("first")
	f.drain(t, node)

	_, err = Run(testCtx(), node, f.st, f.sender)
	require.NoError(t, err)

	info, _ := f.st.Compute(node.ID)
	assert.Equal(t, Pending, info.Stage)
	assert.Equal(t, fetched("first"), info.Value, "stale value stays visible while pending")
}

func TestEveryDelivery_AppliesInArrivalOrder(t *testing.T) {
	f := newFixture()
	var ups []Updater[fetched]
	node := asyncDef(&ups, EveryDelivery).Erase(ident.Of[fetched]())
	f.register(node, fetched(""))

	for range 2 {
		_, err := Run(testCtx(), node, f.st, f.sender)
		require.NoError(t, err)
	}
	ups[1].Deliver("E2")
	ups[0].Deliver("E1")
	verdicts := f.drain(t, node)

	assert.Equal(t, []Verdict{{Apply: true, Finish: true}, {Apply: true, Finish: false}}, verdicts)
	info, _ := f.st.Compute(node.ID)
	assert.Equal(t, fetched("E1"), info.Value)
	assert.Equal(t, Finished, info.Stage)
}

func TestDecide(t *testing.T) {
	assert.Equal(t, Verdict{Apply: true, Finish: true}, Decide(LatestOnly, 0, 9), "direct deliveries always apply")
	assert.Equal(t, Verdict{Apply: true, Finish: true}, Decide(LatestOnly, 3, 3))
	assert.Equal(t, Verdict{}, Decide(LatestOnly, 2, 3))
	assert.Equal(t, Verdict{Apply: true}, Decide(EveryDelivery, 2, 3))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, LatestOnly, p)

	p, err = ParsePolicy("every_delivery")
	require.NoError(t, err)
	assert.Equal(t, EveryDelivery, p)
	assert.Equal(t, "every_delivery", p.String())

	_, err = ParsePolicy("sometimes")
	assert.ErrorContains(t, err, "unknown delivery policy")
}

func TestErase_RequiresStep(t *testing.T) {
	assert.Panics(t, func() { Def[doubled]{}.Erase(ident.Of[doubled]()) })
}

func TestUpdater_DeliverAfterCloseIsDropped(t *testing.T) {
	rt := runtime.New()
	st := store.New()
	var ups []Updater[fetched]
	node := asyncDef(&ups, LatestOnly).Erase(ident.Of[fetched]())
	st.RegisterState(ident.Of[counter](), reflect.TypeFor[counter](), counter(0))
	st.RegisterCompute(node.ID, node.Type, fetched(""))

	_, err := Run(testCtx(), node, st, rt.Sender())
	require.NoError(t, err)
	rt.Close()
	assert.False(t, ups[0].Deliver("late"))
}
