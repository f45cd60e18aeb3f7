package store

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/computegrid/internal/ident"
)

var (
	// ErrStateNotFound matches every *NotFoundError for a state.
	ErrStateNotFound = errors.New("state not found")
	// ErrComputeNotFound matches every *NotFoundError for a compute.
	ErrComputeNotFound = errors.New("compute not found")
)

// SlotKind says which registry a lookup missed.
type SlotKind int

const (
	StateSlot SlotKind = iota
	ComputeSlot
)

func (k SlotKind) String() string {
	if k == ComputeSlot {
		return "compute"
	}
	return "state"
}

// NotFoundError is returned when a lookup by identity misses the registry.
// Context is a short breadcrumb naming the resolution that triggered the
// lookup, e.g. "deps of compute.doubled".
type NotFoundError struct {
	Kind    SlotKind
	ID      ident.ID
	Context string
	// Hint is an optional suggestion such as a similarly named identity.
	Hint string
}

// NotFound builds a *NotFoundError.
func NotFound(kind SlotKind, id ident.ID, context string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id, Context: context}
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	if e.Hint != "" {
		msg += "; " + e.Hint
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == ComputeSlot {
		return ErrComputeNotFound
	}
	return ErrStateNotFound
}
