package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(false)

	m.CycleObserved(3*time.Millisecond, 2)
	m.CycleObserved(time.Millisecond, 0)
	m.MessageApplied("set_state")
	m.MessageApplied("set_state")
	m.ComputeEvaluated("finished")
	m.Delivery(true)
	m.Delivery(false)
	m.Delivery(false)
	m.CommandDispatched("report", "inline")
	m.CommandFinished("report", nil)
	m.CommandFinished("report", errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pendingComputes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesApplied.WithLabelValues("set_state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.computesEvaluated.WithLabelValues("finished")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsDispatched.WithLabelValues("inline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsFailed.WithLabelValues("report")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CycleObserved(time.Second, 1)
		m.MessageApplied("trigger")
		m.ComputeEvaluated("pending")
		m.Delivery(true)
		m.CommandDispatched("a", "inline")
		m.CommandFinished("a", errors.New("x"))
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(false)
	m.CycleObserved(time.Millisecond, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "computegrid_cycles_total 1"))
}
