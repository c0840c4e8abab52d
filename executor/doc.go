// Package executor implements the in-guest control loop (§4.F): it
// reads framed wire.Requests from stdin, materializes their ValueSpecs
// into the guest's own linear memory, dispatches to the actual WASI
// preview1 host imports, and replies with post-call ValueViews.
//
// The package is built for GOOS=wasip1; under that target the
// underlying syscall calls lower to WASI preview1. On any other GOOS it
// still builds (for tests), and Dispatch then issues the same calls
// against the host's own syscall package.
package executor
