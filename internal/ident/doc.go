// Package ident defines the identity that names exactly one State or Compute.
//
// An identity is a lookup key for the store and a node id for the dependency
// graph. Identities derived from Go types come from Of; identities declared in
// a manifest, which have no Go type of their own, come from Named. The two
// live in disjoint key spaces and share a single total order.
package ident
