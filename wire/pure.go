package wire

import "github.com/wasit-fuzz/wasit/spec"

// PureValueKind discriminates the PureValue union (§4.E grammar).
type PureValueKind uint8

const (
	PureBuiltinKind PureValueKind = iota
	PureHandleKind
	PureListKind
	PureRecordKind
	PurePointerKind
)

// PureValue is the closed union of post-call value shapes reported for
// off-guest diffing (§4.E, §9 "Offsets vs pointers").
type PureValue interface {
	PureKind() PureValueKind
}

// PureBuiltin is a scalar integer or char.
type PureBuiltin struct {
	Int      spec.IntKind
	Unsigned uint64
	Signed   int64
}

func (PureBuiltin) PureKind() PureValueKind { return PureBuiltinKind }

// PureHandle is a raw 32-bit resource handle.
type PureHandle struct {
	Value uint32
}

func (PureHandle) PureKind() PureValueKind { return PureHandleKind }

// ValueView pairs a linear-memory offset with the decoded content found
// there, letting the orchestrator diff buffers without a shared address
// space (§9 "Offsets vs pointers").
type ValueView struct {
	Content      PureValue
	MemoryOffset uint32
}

// PureList is the post-call view of an Array.
type PureList struct {
	Items []ValueView
}

func (PureList) PureKind() PureValueKind { return PureListKind }

// NamedView pairs a record member's name with its post-call view.
type NamedView struct {
	Name string
	View ValueView
}

// PureRecord is the post-call view of a Record.
type PureRecord struct {
	Fields []NamedView
}

func (PureRecord) PureKind() PureValueKind { return PureRecordKind }

// PurePointer is the post-call view of a Pointer's pointee.
type PurePointer struct {
	Items []ValueView
}

func (PurePointer) PureKind() PureValueKind { return PurePointerKind }
