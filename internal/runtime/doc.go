// Package runtime owns the two shared structures of an engine: the update
// queue and the dependency graph.
//
// The queue is multi-producer, single-consumer. Producers hold a Sender, a
// small value that may be copied freely and used from any goroutine; sending
// never blocks. The consumer holds the Receiver and pulls with TryRecv or
// Drain, which never block either. All messages are observed in one global
// FIFO order.
//
// The graph is grown only by Record, which inserts one edge per declared
// dependency of a compute, and validated by VerifyDeps.
package runtime
