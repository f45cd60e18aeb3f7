package integrationtests

import (
	"testing"
	"time"

	"github.com/specialistvlad/computegrid/internal/app"
	"github.com/specialistvlad/computegrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test for: asynchronous computes started in the same cycle run in parallel
// and the run settles once all of them delivered.
func TestAsyncExecution_FanOutRunsConcurrently(t *testing.T) {
	sleeper := testutil.NewMockSleeperModule(100 * time.Millisecond)
	grid := `
		state "go" { default = true }
		compute "a" {
		  states  = ["go"]
		  handler = "sleeper"
		}
		compute "b" {
		  states  = ["go"]
		  handler = "sleeper"
		}
		compute "c" {
		  states  = ["go"]
		  handler = "sleeper"
		}
	`
	start := time.Now()
	res := runGrid(t, map[string]string{"main.hcl": grid}, app.Config{}, sleeper)
	require.NoError(t, res.Err)
	assert.Less(t, time.Since(start), 280*time.Millisecond, "sleepers should overlap")
	assert.Equal(t, 3, sleeper.Calls())

	a, b := sleeper.ExecutionTimes["a"][0], sleeper.ExecutionTimes["b"][0]
	assert.True(t, a.Start.Before(b.End) && b.Start.Before(a.End), "executions of a and b should overlap")
}

// Test for: a compute depending on an async compute runs after the delivery.
func TestAsyncExecution_DependentsWaitForDelivery(t *testing.T) {
	sleeper := testutil.NewMockSleeperModule(20 * time.Millisecond)
	grid := `
		state "go" { default = true }
		compute "slow" {
		  states  = ["go"]
		  handler = "sleeper"
		}
		compute "after" {
		  computes = ["slow"]
		  value    = slow == null ? "waiting" : "got ${slow}"
		}
	`
	res := runGrid(t, map[string]string{"main.hcl": grid}, app.Config{}, sleeper)
	require.NoError(t, res.Err)
	assert.JSONEq(t, `{"slow": 1, "after": "got 1"}`, res.Output)
}

// Test for: a fixed cycle count does not wait for pending work, and the
// pending compute keeps its previous output.
func TestAsyncExecution_FixedCyclesReportPending(t *testing.T) {
	sleeper := testutil.NewMockSleeperModule(time.Second)
	grid := `
		state "go" { default = true }
		compute "slow" {
		  states  = ["go"]
		  default = 0
		  handler = "sleeper"
		}
	`
	res := runGrid(t, map[string]string{"main.hcl": grid}, app.Config{Cycles: 1}, sleeper)
	require.NoError(t, res.Err)
	assert.JSONEq(t, `{}`, res.Output, "a compute that never finished has no cached output")
}
