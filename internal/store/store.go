package store

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/specialistvlad/computegrid/internal/ident"
)

// Stage is the execution status of a compute.
type Stage int

const (
	// Finished means the cached output is current and usable.
	Finished Stage = iota
	// Pending means an asynchronous execution is outstanding; the previous
	// cached output, if any, stays visible until it is superseded.
	Pending
)

func (s Stage) String() string {
	switch s {
	case Finished:
		return "finished"
	case Pending:
		return "pending"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

type slot struct {
	typ     reflect.Type
	value   any
	version uint64
}

type computeSlot struct {
	slot
	evaluated  bool
	stage      Stage
	generation uint64 // generation of the most recently started execution
}

// ComputeInfo is a point-in-time copy of a compute slot.
type ComputeInfo struct {
	Value any
	// Evaluated is false until the first accepted output.
	Evaluated bool
	Stage     Stage
	// Generation is the generation of the most recently started execution.
	Generation uint64
	// Version increments every time the cached output changes.
	Version uint64
}

// Store is the in-memory slot table of one engine.
type Store struct {
	mu       sync.RWMutex
	states   map[ident.ID]*slot
	computes map[ident.ID]*computeSlot
}

// New creates an empty store.
func New() *Store {
	return &Store{
		states:   make(map[ident.ID]*slot),
		computes: make(map[ident.ID]*computeSlot),
	}
}

// checkType panics when v cannot live in a slot of type typ.
func checkType(kind SlotKind, id ident.ID, typ reflect.Type, v any) {
	if v == nil {
		switch typ.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return
		}
		panic(fmt.Sprintf("store: nil value for %s %s of type %s", kind, id, typ))
	}
	if vt := reflect.TypeOf(v); !vt.AssignableTo(typ) {
		panic(fmt.Sprintf("store: type mismatch for %s %s: registered %s, got %s", kind, id, typ, vt))
	}
}

// RegisterState installs def under id if the id is absent and reports whether
// it did. Registering an existing id is a no-op, but registering it with a
// different type panics.
func (s *Store) RegisterState(id ident.ID, typ reflect.Type, def any) bool {
	checkType(StateSlot, id, typ, def)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.states[id]; ok {
		if existing.typ != typ {
			panic(fmt.Sprintf("store: state %s re-registered as %s, was %s", id, typ, existing.typ))
		}
		return false
	}
	s.states[id] = &slot{typ: typ, value: def}
	return true
}

// RegisterCompute installs a compute slot holding def. The slot starts
// Finished but not evaluated.
func (s *Store) RegisterCompute(id ident.ID, typ reflect.Type, def any) bool {
	checkType(ComputeSlot, id, typ, def)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.computes[id]; ok {
		if existing.typ != typ {
			panic(fmt.Sprintf("store: compute %s re-registered as %s, was %s", id, typ, existing.typ))
		}
		return false
	}
	s.computes[id] = &computeSlot{slot: slot{typ: typ, value: def}}
	return true
}

// HasState reports whether id is a registered state.
func (s *Store) HasState(id ident.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.states[id]
	return ok
}

// HasCompute reports whether id is a registered compute.
func (s *Store) HasCompute(id ident.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.computes[id]
	return ok
}

// StateValue returns the live value of a state.
func (s *Store) StateValue(id ident.ID) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.states[id]
	if !ok {
		return nil, false
	}
	return sl.value, true
}

// StateVersion returns how many times the state has been written.
func (s *Store) StateVersion(id ident.ID) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.states[id]
	if !ok {
		return 0, false
	}
	return sl.version, true
}

// ComputeValue returns the current output of a compute, which is its default
// until the first accepted output.
func (s *Store) ComputeValue(id ident.ID) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.computes[id]
	if !ok {
		return nil, false
	}
	return sl.value, true
}

// Compute returns a copy of the compute slot.
func (s *Store) Compute(id ident.ID) (ComputeInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.computes[id]
	if !ok {
		return ComputeInfo{}, false
	}
	return ComputeInfo{
		Value:      sl.value,
		Evaluated:  sl.evaluated,
		Stage:      sl.stage,
		Generation: sl.generation,
		Version:    sl.version,
	}, true
}

// SetState replaces the value of a state.
func (s *Store) SetState(id ident.ID, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.states[id]
	if !ok {
		return NotFound(StateSlot, id, "set state")
	}
	checkType(StateSlot, id, sl.typ, v)
	sl.value = v
	sl.version++
	return nil
}

// ModifyState replaces the value of a state with fn(current). fn runs without
// the store lock held, so it may read the store.
func (s *Store) ModifyState(id ident.ID, fn func(any) any) error {
	s.mu.RLock()
	sl, ok := s.states[id]
	var cur any
	if ok {
		cur = sl.value
	}
	s.mu.RUnlock()
	if !ok {
		return NotFound(StateSlot, id, "modify state")
	}

	v := fn(cur)
	checkType(StateSlot, id, sl.typ, v)

	s.mu.Lock()
	defer s.mu.Unlock()
	sl.value = v
	sl.version++
	return nil
}

// StartExecution allocates the next generation of a compute. Generations are
// per compute, start at 1, and increase strictly in start order.
func (s *Store) StartExecution(id ident.ID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.computes[id]
	if !ok {
		return 0, NotFound(ComputeSlot, id, "start execution")
	}
	sl.generation++
	return sl.generation, nil
}

// SetStage changes the stage of a compute without touching its output.
func (s *Store) SetStage(id ident.ID, stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.computes[id]
	if !ok {
		return NotFound(ComputeSlot, id, "set stage")
	}
	sl.stage = stage
	return nil
}

// SetOutput stores a new cached output for a compute, marks it evaluated and
// moves it to stage.
func (s *Store) SetOutput(id ident.ID, v any, stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.computes[id]
	if !ok {
		return NotFound(ComputeSlot, id, "set output")
	}
	checkType(ComputeSlot, id, sl.typ, v)
	sl.value = v
	sl.evaluated = true
	sl.stage = stage
	sl.version++
	return nil
}

// StateIDs returns every registered state in identity order.
func (s *Store) StateIDs() []ident.ID {
	s.mu.RLock()
	ids := make([]ident.ID, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	ident.Sort(ids)
	return ids
}

// ComputeIDs returns every registered compute in identity order.
func (s *Store) ComputeIDs() []ident.ID {
	s.mu.RLock()
	ids := make([]ident.ID, 0, len(s.computes))
	for id := range s.computes {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	ident.Sort(ids)
	return ids
}
