// Package snapshot holds frozen copies of selected State and Compute values.
//
// A snapshot is filled once at construction and never changes afterwards, no
// matter what happens to the live store. Commands read from exactly one
// Command snapshot; the engine also publishes a Compute snapshot every cycle
// as the read view for consumers.
package snapshot
