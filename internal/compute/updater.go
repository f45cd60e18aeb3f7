package compute

import (
	"log/slog"

	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/specialistvlad/computegrid/internal/runtime"
)

type updaterEnv struct {
	sender runtime.Sender
	logger *slog.Logger
	latest func() uint64
}

// Updater delivers the result of one execution of a compute. It is bound to
// the execution's generation, may be copied, and is safe to use from any
// goroutine.
type Updater[T any] struct {
	id  ident.ID
	gen uint64
	env updaterEnv
}

// ID returns the compute the updater delivers to.
func (u Updater[T]) ID() ident.ID { return u.id }

// Generation returns the generation of the execution the updater belongs to.
func (u Updater[T]) Generation() uint64 { return u.gen }

// Deliver queues v as the result of this execution. It reports whether the
// message was queued; whether it is applied is decided later by the policy.
func (u Updater[T]) Deliver(v T) bool {
	ok := u.env.sender.Send(runtime.Message{
		Kind:   runtime.Deliver,
		ID:     u.id,
		Gen:    u.gen,
		Value:  v,
		Origin: "updater",
	})
	if !ok && u.env.logger != nil {
		u.env.logger.Warn("Delivery dropped: runtime is closed.", "compute", u.id.String(), "generation", u.gen)
	}
	return ok
}

// Fail records that the asynchronous work failed. Nothing is delivered: the
// compute keeps its previous output and stays Pending until a later execution
// delivers.
func (u Updater[T]) Fail(err error) {
	if u.env.logger != nil {
		u.env.logger.Warn("Asynchronous compute failed.", "compute", u.id.String(), "generation", u.gen, "error", err)
	}
}

// Superseded reports whether a newer execution of the compute has started.
// Long-running work may poll it to stop early; nothing stops it otherwise.
func (u Updater[T]) Superseded() bool {
	if u.env.latest == nil {
		return false
	}
	return u.env.latest() > u.gen
}
