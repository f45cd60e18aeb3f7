package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// MockSleeperModule is a shared, self-contained module for concurrency tests.
// It registers an async "sleeper" step that records the execution time of
// each compute using it and returns the number of calls made so far.
type MockSleeperModule struct {
	ExecutionTimes map[string][]ExecutionRecord
	mu             sync.Mutex
	calls          int
	sleepDuration  time.Duration
}

// NewMockSleeperModule creates a new sleeper module for testing.
func NewMockSleeperModule(sleep time.Duration) *MockSleeperModule {
	return &MockSleeperModule{
		ExecutionTimes: make(map[string][]ExecutionRecord),
		sleepDuration:  sleep,
	}
}

// Register registers the "sleeper" step handler.
func (m *MockSleeperModule) Register(r *registry.Registry) {
	r.RegisterStep("sleeper", &registry.StepHandler{
		Async: true,
		Fn: func(ctx context.Context, call *registry.StepCall) (any, error) {
			start := time.Now()
			select {
			case <-time.After(m.sleepDuration):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			m.mu.Lock()
			defer m.mu.Unlock()
			m.calls++
			m.ExecutionTimes[call.Compute] = append(m.ExecutionTimes[call.Compute], ExecutionRecord{Start: start, End: time.Now()})
			return cty.NumberIntVal(int64(m.calls)), nil
		},
	})
}

// Calls returns how many executions have finished.
func (m *MockSleeperModule) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ExecutionRecord holds the start and end times of one execution.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}
