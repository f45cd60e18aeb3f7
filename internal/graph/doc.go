// Package graph is a small directed graph over comparable node ids.
//
// Edges point from a dependency to its dependent. The graph is grown only by
// RouteTo and AddNode, and validated with TopologySort, which either returns a
// total execution order consistent with every edge or a *CycleError naming the
// first cycle found.
//
// All results are deterministic: ties are broken with the ordering function
// supplied to New, so two graphs built from the same edges in any insertion
// order report the same order and the same cycle.
//
// All operations are safe for concurrent use.
package graph
