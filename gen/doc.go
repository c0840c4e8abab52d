// Package gen implements the value generator (§4.C): given a desired
// spec.Type, a resource.Store snapshot, and a set of Controls, it
// produces a spec.ValueSpec whose type matches and whose resource
// references are all live.
//
// Generation is deterministic under a fixed RNG seed and store snapshot
// (§8 property 5): every random choice is drawn from Controls.RNG, never
// from a package-level or time-seeded source.
package gen
