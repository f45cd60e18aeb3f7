// Package engine is the orchestrator of the reactive runtime.
//
// An Engine owns one store, one runtime (update queue and dependency graph)
// and one command dispatcher. Collaborators register states and computes,
// enqueue mutations through Mut handles, and dispatch commands. The host then
// drives discrete cycles:
//
//	RunComputed   drain the queue into the store, apply deliveries, and
//	              re-evaluate every dirty compute in topological order
//	SyncComputes  publish an immutable view of the cached outputs
//
// Nothing here spawns a loop of its own. RunComputed must be called from one
// goroutine at a time; every other method is safe from any goroutine.
package engine
