package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is the sentinel wrapped by every *CycleError.
var ErrCycle = errors.New("dependency cycle detected")

// CycleError reports one cycle in the graph. Cycle lists the participating
// nodes in edge order and repeats the first node at the end, e.g. [a b a].
type CycleError[N comparable] struct {
	Cycle []N
}

func (e *CycleError[N]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("%s: %s", ErrCycle.Error(), strings.Join(parts, " -> "))
}

func (e *CycleError[N]) Unwrap() error { return ErrCycle }

// Members returns the distinct nodes of the cycle.
func (e *CycleError[N]) Members() []N {
	if len(e.Cycle) <= 1 {
		return e.Cycle
	}
	return e.Cycle[:len(e.Cycle)-1]
}
