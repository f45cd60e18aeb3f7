package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/runtime"
	"github.com/specialistvlad/computegrid/internal/snapshot"
	"golang.org/x/sync/errgroup"
)

// Observer receives dispatch events, typically for metrics.
type Observer interface {
	CommandDispatched(name, mode string)
	CommandFinished(name string, err error)
}

// Receipt identifies one dispatch.
type Receipt struct {
	ID   string
	Name string
	Mode Mode
}

// Dispatcher runs commands. Background commands share a pool of at most
// workers goroutines; Dispatch itself never blocks on the pool.
type Dispatcher struct {
	sender   runtime.Sender
	workers  int
	observer Observer

	mu    sync.Mutex
	batch *batch
}

// batch is the set of background commands one Wait call collects.
type batch struct {
	group   *errgroup.Group
	handoff sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver reports every dispatch to o.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher creates a dispatcher whose commands send to sender.
func NewDispatcher(sender runtime.Sender, workers int, opts ...Option) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{sender: sender, workers: workers}
	for _, opt := range opts {
		opt(d)
	}
	d.batch = d.newBatch()
	return d
}

func (d *Dispatcher) newBatch() *batch {
	b := &batch{group: new(errgroup.Group)}
	b.group.SetLimit(d.workers)
	return b
}

// Dispatch runs cmd against snap. Inline commands return their error directly;
// background commands report it through Wait.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, snap *snapshot.Command) (Receipt, error) {
	r := Receipt{ID: uuid.NewString(), Name: cmd.Name(), Mode: cmd.Mode()}
	ctx = ctxlog.With(ctx, "command", r.Name, "dispatch", r.ID)
	out := NewOutbox(d.sender, r.ID)

	if d.observer != nil {
		d.observer.CommandDispatched(r.Name, r.Mode.String())
	}
	ctxlog.FromContext(ctx).Debug("Dispatching command.", "mode", r.Mode.String())

	if r.Mode == Inline {
		return r, d.run(ctx, cmd, snap, out)
	}

	task := func() error { return d.run(ctx, cmd, snap, out) }
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.batch
	if !b.group.TryGo(task) {
		// Pool is full: queue the task without holding up the caller.
		b.handoff.Add(1)
		go func() {
			defer b.handoff.Done()
			b.group.Go(task)
		}()
	}
	return r, nil
}

func (d *Dispatcher) run(ctx context.Context, cmd Command, snap *snapshot.Command, out Outbox) (err error) {
	logger := ctxlog.FromContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("command %s panicked: %v", cmd.Name(), p)
		}
		if err != nil {
			logger.Error("Command failed.", "error", err)
		} else {
			logger.Info("✅ Command finished.")
		}
		if d.observer != nil {
			d.observer.CommandFinished(cmd.Name(), err)
		}
	}()

	logger.Info("▶️ Running command.")
	if err := cmd.Run(ctx, snap, out); err != nil {
		return fmt.Errorf("command %s: %w", cmd.Name(), err)
	}
	return nil
}

// Wait blocks until every background command dispatched so far has returned
// and reports the first error. The dispatcher can be reused afterwards.
func (d *Dispatcher) Wait() error {
	d.mu.Lock()
	b := d.batch
	d.batch = d.newBatch()
	d.mu.Unlock()
	b.handoff.Wait()
	return b.group.Wait()
}
