// Package orchestrator drives N runtime children through the same
// program (§4.G): it broadcasts each request, collects per-child
// responses under a deadline, normalizes them for comparison, and
// installs agreed resource results into the host-side store.
package orchestrator
