// Package app contains the core application logic. It wires the manifest,
// the handler registry and the engine together and drives a run, decoupled
// from any specific entrypoint like a CLI or server.
package app
