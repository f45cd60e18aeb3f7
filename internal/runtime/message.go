package runtime

import (
	"fmt"

	"github.com/specialistvlad/computegrid/internal/ident"
)

// Kind is the closed set of update messages.
type Kind int

const (
	// SetState replaces a state's value with Value.
	SetState Kind = iota
	// ModifyState replaces a state's value with Fn(current).
	ModifyState
	// Deliver hands an asynchronous result for the execution Gen of a compute.
	Deliver
	// Trigger marks a compute for re-evaluation.
	Trigger
)

func (k Kind) String() string {
	switch k {
	case SetState:
		return "set_state"
	case ModifyState:
		return "modify_state"
	case Deliver:
		return "deliver"
	case Trigger:
		return "trigger"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is one queued update.
type Message struct {
	Kind  Kind
	ID    ident.ID
	Value any
	// Gen is the generation of the execution that produced a Deliver. Zero
	// means "not tied to an execution" (e.g. a command's direct delivery).
	Gen uint64
	Fn  func(any) any
	// Origin names the producer, for logs only.
	Origin string
}
