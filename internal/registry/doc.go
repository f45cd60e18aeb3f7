// Package registry provides the central "glue" for the module system.
//
// The Registry maps the handler names used in manifests (e.g. "env_lookup")
// to compiled Go functions. Modules add their handlers at startup through
// Module.Register; the manifest loader then resolves every `handler = "..."`
// attribute against the registry.
//
// Validate performs a strict parity check between the manifest and the Go
// code before anything runs, so a misspelled handler name or a wrong argument
// type fails at load time instead of in the middle of a cycle.
package registry
