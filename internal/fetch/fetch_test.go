package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func testCtx() context.Context { return ctxlog.Discard(context.Background()) }

func echo() Service {
	return ServiceFunc(func(_ context.Context, req Request) (cty.Value, error) {
		return req.Data, nil
	})
}

func TestAsync_DeliversResult(t *testing.T) {
	got := make(chan cty.Value, 1)
	Async(testCtx(), echo(), Request{Event: "echo", Data: cty.StringVal("hi")}, time.Second, func(v cty.Value, err error) {
		assert.NoError(t, err)
		got <- v
	})

	select {
	case v := <-got:
		assert.True(t, v.RawEquals(cty.StringVal("hi")))
	case <-time.After(5 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestAsync_Timeout(t *testing.T) {
	slow := ServiceFunc(func(ctx context.Context, _ Request) (cty.Value, error) {
		<-ctx.Done()
		return cty.NilVal, ctx.Err()
	})
	errs := make(chan error, 1)
	Async(testCtx(), slow, Request{Event: "slow"}, 10*time.Millisecond, func(_ cty.Value, err error) {
		errs <- err
	})

	err := <-errs
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "fetch slow")
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	failing := ServiceFunc(func(context.Context, Request) (cty.Value, error) {
		calls++
		return cty.NilVal, boom
	})
	b := NewBreaker(testCtx(), "remote", failing, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour})

	for range 2 {
		_, err := b.Call(context.Background(), Request{Event: "x"})
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Call(context.Background(), Request{Event: "x"})
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, calls, "open breaker does not reach the service")
}

func TestBreaker_PassesResults(t *testing.T) {
	b := NewBreaker(testCtx(), "echo", echo(), BreakerSettings{})
	v, err := b.Call(context.Background(), Request{Data: cty.NumberIntVal(3)})
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(3)))
	assert.Equal(t, "closed", b.State())
}

func TestNativeConversion(t *testing.T) {
	in := cty.ObjectVal(map[string]cty.Value{
		"n":    cty.NumberIntVal(2),
		"tags": cty.ListVal([]cty.Value{cty.StringVal("a")}),
		"ok":   cty.True,
		"none": cty.NullVal(cty.String),
	})
	native, err := ToNative(in)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 2.0, "tags": []any{"a"}, "ok": true, "none": nil}, native)

	// Round-trip through JSON the way a socket.io payload arrives.
	raw, err := json.Marshal(native)
	require.NoError(t, err)
	var decoded any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	back, err := FromNative(decoded)
	require.NoError(t, err)
	assert.Equal(t, "a", back.GetAttr("tags").Index(cty.NumberIntVal(0)).AsString())
	assert.True(t, back.GetAttr("n").RawEquals(cty.NumberFloatVal(2)))

	_, err = FromNative(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")
}
