package spec

// ValueSpecKind discriminates the ValueSpec union (§3).
type ValueSpecKind uint8

const (
	ValueSpecResource ValueSpecKind = iota
	ValueSpecRaw
)

// ValueSpec describes how a concrete call argument is obtained: either
// by reusing a live Resource, or from a freshly generated RawValue.
type ValueSpec interface {
	ValueKind() ValueSpecKind
}

// ResourceRef reuses a live resource as an argument.
type ResourceRef struct {
	ID uint64
}

func (ResourceRef) ValueKind() ValueSpecKind { return ValueSpecResource }

// RawValue carries a freshly generated value whose shape mirrors its Type.
type RawValue struct {
	Type Type
	Body RawBody
}

func (RawValue) ValueKind() ValueSpecKind { return ValueSpecRaw }

// RawBodyKind discriminates the RawValue.Body union.
type RawBodyKind uint8

const (
	BodyBuiltin RawBodyKind = iota
	BodyString
	BodyBitflags
	BodyHandle
	BodyArray
	BodyRecord
	BodyConstPointer
	BodyPointer
	BodyVariant
)

// RawBody is a closed union mirroring Type's shape (§3).
type RawBody interface {
	BodyKind() RawBodyKind
}

// BuiltinValue holds a scalar integer or char, widened to uint64 /
// int64 depending on signedness; Char is stored in Unsigned as a rune.
type BuiltinValue struct {
	Unsigned uint64
	Signed   int64
	Int      IntKind
}

func (BuiltinValue) BodyKind() RawBodyKind { return BodyBuiltin }

// StringValue holds raw UTF-8 bytes with no NUL terminator (§9 open
// question, resolved: preview1's ABI is pointer+length, not C-string).
type StringValue struct {
	Bytes []byte
}

func (StringValue) BodyKind() RawBodyKind { return BodyString }

// BitflagsValue holds one bool per member, same order as BitflagsType.Members.
type BitflagsValue struct {
	Bits []bool
}

func (BitflagsValue) BodyKind() RawBodyKind { return BodyBitflags }

// HandleValue holds a raw 32-bit handle integer, used only for Decl
// seeding (§3: Resources are created by a decl or a Result install).
type HandleValue struct {
	Value uint32
}

func (HandleValue) BodyKind() RawBodyKind { return BodyHandle }

// ArrayValue holds the element ValueSpecs of an Array.
type ArrayValue struct {
	Items []ValueSpec
}

func (ArrayValue) BodyKind() RawBodyKind { return BodyArray }

// RecordField pairs a member name with its generated value.
type RecordField struct {
	Name  string
	Value ValueSpec
}

// RecordValue holds the member ValueSpecs of a Record, declaration order.
type RecordValue struct {
	Fields []RecordField
}

func (RecordValue) BodyKind() RawBodyKind { return BodyRecord }

// ConstPointerValue holds the element ValueSpecs a borrowed pointer refers to.
type ConstPointerValue struct {
	Items []ValueSpec
}

func (ConstPointerValue) BodyKind() RawBodyKind { return BodyConstPointer }

// PointerAllocKind discriminates how a Pointer's backing allocation size
// is determined.
type PointerAllocKind uint8

const (
	PointerAllocConst PointerAllocKind = iota
	PointerAllocResource
)

// PointerAlloc is either a fixed byte size or a reference to a live
// resource whose value dictates the allocation size.
type PointerAlloc struct {
	ResourceID uint64
	Size       uint32
	Kind       PointerAllocKind
}

// PointerValue holds an owned pointer's allocation directive.
type PointerValue struct {
	Alloc PointerAlloc
}

func (PointerValue) BodyKind() RawBodyKind { return BodyPointer }

// VariantValue selects a case index and, if that case carries a
// payload, the generated payload value.
type VariantValue struct {
	Payload  ValueSpec
	CaseIdx  uint32
}

func (VariantValue) BodyKind() RawBodyKind { return BodyVariant }

// ResultSpecKind discriminates the ResultSpec union (§3).
type ResultSpecKind uint8

const (
	ResultIgnore ResultSpecKind = iota
	ResultResource
)

// ResultSpec says what to do with a call's return value: discard it, or
// install it as a new live resource.
type ResultSpec interface {
	ResultKind() ResultSpecKind
}

// IgnoreResult discards a result.
type IgnoreResult struct {
	Type Type
}

func (IgnoreResult) ResultKind() ResultSpecKind { return ResultIgnore }

// ResourceResult installs a result as a new resource under ID.
type ResourceResult struct {
	Type Type
	ID   uint64
}

func (ResourceResult) ResultKind() ResultSpecKind { return ResultResource }
