// Package command runs one-shot units of work against frozen snapshots.
//
// A command never touches the live store. It reads the snapshot it was handed
// and sends its effects through an Outbox, which feeds the same update queue
// as every other producer, so they are applied on the next cycle.
package command

import (
	"context"
	"fmt"

	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/runtime"
	"github.com/specialistvlad/computegrid/internal/snapshot"
)

// Mode selects where a command runs.
type Mode int

const (
	// Inline commands run synchronously inside Dispatch.
	Inline Mode = iota
	// Background commands run on the dispatcher's worker pool.
	Background
)

func (m Mode) String() string {
	switch m {
	case Inline:
		return "inline"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Command is an external unit of work.
type Command interface {
	// Name is used in logs and metrics.
	Name() string
	// Deps lists the states and computes to capture in the snapshot.
	Deps() (states, computes []ident.ID)
	Mode() Mode
	Run(ctx context.Context, snap *snapshot.Command, out Outbox) error
}

// Func adapts a plain function to Command.
type Func struct {
	Label    string
	States   []ident.ID
	Computes []ident.ID
	Exec     Mode
	Fn       func(ctx context.Context, snap *snapshot.Command, out Outbox) error
}

func (f Func) Name() string                        { return f.Label }
func (f Func) Deps() (states, computes []ident.ID) { return f.States, f.Computes }
func (f Func) Mode() Mode                          { return f.Exec }
func (f Func) Run(ctx context.Context, snap *snapshot.Command, out Outbox) error {
	if f.Fn == nil {
		return fmt.Errorf("command %s has no function", f.Label)
	}
	return f.Fn(ctx, snap, out)
}

// Outbox routes a command's effects back into the update queue. It is safe to
// use from any goroutine and after Run returns.
type Outbox struct {
	sender   runtime.Sender
	dispatch string
}

// NewOutbox returns an outbox sending to sender, tagged with a dispatch id.
func NewOutbox(sender runtime.Sender, dispatch string) Outbox {
	return Outbox{sender: sender, dispatch: dispatch}
}

// DispatchID returns the id of the dispatch the outbox belongs to.
func (o Outbox) DispatchID() string { return o.dispatch }

// SetState queues a new value for state id.
func (o Outbox) SetState(id ident.ID, v any) bool {
	return o.sender.Send(runtime.Message{Kind: runtime.SetState, ID: id, Value: v, Origin: o.origin()})
}

// Deliver queues v as a fresh output of compute id. It is not tied to any
// execution, so no delivery policy can drop it.
func (o Outbox) Deliver(id ident.ID, v any) bool {
	return o.sender.Send(runtime.Message{Kind: runtime.Deliver, ID: id, Value: v, Origin: o.origin()})
}

// Trigger queues a re-evaluation of compute id.
func (o Outbox) Trigger(id ident.ID) bool {
	return o.sender.Send(runtime.Message{Kind: runtime.Trigger, ID: id, Origin: o.origin()})
}

func (o Outbox) origin() string { return "command:" + o.dispatch }

// Set queues a new value for state T.
func Set[T any](o Outbox, v T) bool { return o.SetState(ident.Of[T](), v) }

// Deliver queues v as a fresh output of compute T.
func Deliver[T any](o Outbox, v T) bool { return o.Deliver(ident.Of[T](), v) }
