// Package store holds exactly one live value per registered State and one
// cached output per registered Compute.
//
// Slots are type-erased (any) but typed at registration: every write is
// checked against the registered type and a mismatch panics, because it means
// the code that registered the slot and the code that writes it disagree about
// the type. The store never coerces.
//
// Mutation is reserved for the engine's single consumer goroutine (the apply
// step of a cycle). Reads are guarded by an RWMutex so snapshots and cached
// reads may happen from any goroutine.
package store
