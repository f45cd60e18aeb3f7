package fetch

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = gobreaker.ErrOpenState

// BreakerSettings tunes a Breaker.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Zero means 5.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe
	// through. Zero means 30s.
	OpenTimeout time.Duration
}

// Breaker guards a Service with a circuit breaker so a dead remote fails fast
// instead of piling up pending computes.
type Breaker struct {
	svc Service
	cb  *gobreaker.CircuitBreaker
}

// NewBreaker wraps svc. State changes are logged with the logger from ctx.
func NewBreaker(ctx context.Context, name string, svc Service, s BreakerSettings) *Breaker {
	logger := ctxlog.FromContext(ctx).With("breaker", name)
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := s.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Breaker{
		svc: svc,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker changed state.", "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Call forwards req to the wrapped service unless the breaker is open.
func (b *Breaker) Call(ctx context.Context, req Request) (cty.Value, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.svc.Call(ctx, req)
	})
	if err != nil {
		return cty.NilVal, err
	}
	return out.(cty.Value), nil
}

// State returns the breaker state, e.g. "closed" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }
