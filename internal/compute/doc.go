// Package compute executes derived values.
//
// A compute is described by a Def: its declared state and compute
// dependencies, a step function and a delivery policy. Each execution builds a
// fresh dep.Bundle, allocates the next generation of the compute, and calls the
// step with the bundle and an Updater bound to that generation.
//
// The step either finishes synchronously (Done) and its value becomes the
// cached output at once, or hands off to asynchronous work (Await). While the
// work is outstanding the compute is Pending and the previous cached output
// stays visible. The work later calls Updater.Deliver; the delivery is queued
// and applied by the engine's consumer according to the compute's Policy.
package compute
