// Package fetch is the request/response contract between computes and remote
// services.
//
// The engine never talks to the network. A compute that needs remote data
// calls a Service through Async from its step, returns compute.Await, and
// delivers the reply through its Updater when the callback fires.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Request is one call to a remote service.
type Request struct {
	// Event is what the service is asked to do.
	Event string
	// Reply names the response the caller waits for. Services that answer
	// directly may ignore it.
	Reply string
	Data  cty.Value
}

// Service answers requests.
type Service interface {
	Call(ctx context.Context, req Request) (cty.Value, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req Request) (cty.Value, error)

func (f ServiceFunc) Call(ctx context.Context, req Request) (cty.Value, error) { return f(ctx, req) }

// Async calls svc on a new goroutine and hands the outcome to done. A
// positive timeout bounds the call. Async returns at once.
func Async(ctx context.Context, svc Service, req Request, timeout time.Duration, done func(cty.Value, error)) {
	logger := ctxlog.FromContext(ctx).With("event", req.Event)
	go func() {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		v, err := svc.Call(callCtx, req)
		if err != nil {
			err = fmt.Errorf("fetch %s: %w", req.Event, err)
		}
		logger.Debug("Fetch finished.", "duration", time.Since(start), "error", err)
		done(v, err)
	}()
}
