// Package resource implements the host-side resource store (§3, §4.B):
// an id-keyed table of live, typed values and their memory footprint.
//
// Store generalizes the handle-table pattern used throughout the example
// corpus (observer-notified insert/remove on a typed table) to WASIT's
// domain: entries carry a spec.Type and the raw bytes a call returned or
// a decl seeded, rather than an arbitrary Go value.
package resource
