// Package errs provides the structured error type used across WASIT.
//
// Errors are categorized by Phase (which component raised it) and Kind
// (what went wrong). Use the Builder for structured construction:
//
//	err := errs.New(errs.PhaseWire, errs.KindProtocol).
//		Path("request", "params[2]").
//		Detail("unknown tag %d", tag).
//		Build()
//
// Host-visible WASI errnos are NOT represented as errs.Error — they are
// first-class return values carried on wire.CallResponse.
package errs

import (
	"fmt"
	"strings"
)

// Phase indicates which component raised the error.
type Phase string

const (
	PhaseGenerate    Phase = "generate"
	PhaseSynthesize  Phase = "synthesize"
	PhaseWire        Phase = "wire"
	PhaseExecute     Phase = "execute"
	PhaseOrchestrate Phase = "orchestrate"
	PhaseReport      Phase = "report"
	PhaseResource    Phase = "resource"
	PhaseConfig      Phase = "config"
)

// Kind categorizes the error within a Phase.
type Kind string

const (
	KindDuplicateID  Kind = "duplicate_id"
	KindMissing      Kind = "missing"
	KindProtocol     Kind = "protocol"
	KindTimeout      Kind = "timeout"
	KindCrash        Kind = "crash"
	KindUnreachable  Kind = "unreachable"
	KindNoRunnable   Kind = "no_runnable"
	KindConstraint   Kind = "constraint"
	KindInvalidData  Kind = "invalid_data"
	KindOverflow     Kind = "overflow"
	KindUnsupported  Kind = "unsupported"
	KindInvalidInput Kind = "invalid_input"
)

// Error is the structured error type used throughout WASIT.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Phase and Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New starts building an Error for the given Phase and Kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

// Path sets the field path the error occurred at.
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(format string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(format, args...)
	} else {
		b.err.Detail = format
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// DuplicateID builds a resource-store duplicate-id error.
func DuplicateID(id uint64) *Error {
	return New(PhaseResource, KindDuplicateID).Detail("resource %d already exists", id).Build()
}

// Missing builds a resource-store missing-id error.
func Missing(id uint64) *Error {
	return New(PhaseResource, KindMissing).Detail("resource %d not found", id).Build()
}

// Unreachable builds an error for a tagged-union case that must never occur.
// Every exhaustive switch in WASIT hits this on an unrecognized tag instead
// of silently falling through.
func Unreachable(phase Phase, what string, tag any) *Error {
	return New(phase, KindUnreachable).Detail("unreachable %s tag: %v", what, tag).Build()
}
