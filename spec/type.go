package spec

// TypeKind discriminates the closed Type union (§3).
type TypeKind uint8

const (
	KindBuiltin TypeKind = iota
	KindString
	KindBitflags
	KindHandle
	KindArray
	KindRecord
	KindConstPointer
	KindPointer
	KindVariant
)

func (k TypeKind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindString:
		return "string"
	case KindBitflags:
		return "bitflags"
	case KindHandle:
		return "handle"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	case KindConstPointer:
		return "const_pointer"
	case KindPointer:
		return "pointer"
	case KindVariant:
		return "variant"
	default:
		return "unknown_kind"
	}
}

// Type is a closed tagged union over the value-type shapes in §3.
type Type interface {
	Kind() TypeKind
}

// IntKind enumerates the builtin integer/char representations.
type IntKind uint8

const (
	U8 IntKind = iota
	U16
	U32
	U64
	S8
	S16
	S32
	S64
	Char
)

func (k IntKind) String() string {
	switch k {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case S8:
		return "s8"
	case S16:
		return "s16"
	case S32:
		return "s32"
	case S64:
		return "s64"
	case Char:
		return "char"
	default:
		return "unknown_int_kind"
	}
}

// Size returns the storage size in bytes of this integer representation.
func (k IntKind) Size() uint32 {
	switch k {
	case U8, S8:
		return 1
	case U16, S16:
		return 2
	case U32, S32, Char:
		return 4
	case U64, S64:
		return 8
	default:
		return 0
	}
}

// Builtin is an integer or char scalar.
type Builtin struct {
	Int IntKind
}

func (Builtin) Kind() TypeKind { return KindBuiltin }

// StringType is a UTF-8 byte sequence whose length is carried out of band.
type StringType struct{}

func (StringType) Kind() TypeKind { return KindString }

// BitflagsType is an ordered set of named bits backed by a fixed-width
// integer representation.
type BitflagsType struct {
	Members []string
	Repr    IntKind
}

func (BitflagsType) Kind() TypeKind { return KindBitflags }

// HandleType is a 32-bit opaque integer referring to a live Resource.
// SubKind optionally narrows which resource.Store sub-category a value
// of this handle type must come from (e.g. "dir" for path_open's
// fd parameter), mirroring the generator's fulfills-filtering in §4.C.1.
type HandleType struct {
	SubKind string
}

func (HandleType) Kind() TypeKind { return KindHandle }

// ArrayType is a contiguous sequence of Item whose length is carried by
// the value, not the type.
type ArrayType struct {
	Item     Type
	ItemSize uint32
}

func (ArrayType) Kind() TypeKind { return KindArray }

// RecordMember is one named, offset-positioned field of a Record.
type RecordMember struct {
	Name   string
	Type   Type
	Offset uint32
}

// RecordType is an ordered set of named, offset-positioned members.
type RecordType struct {
	Members []RecordMember
	Size    uint32
}

func (RecordType) Kind() TypeKind { return KindRecord }

// ConstPointerType is a borrowed pointer to a sequence of Elem; the
// pointee must not be mutated by the callee in the generator's model.
type ConstPointerType struct {
	Elem Type
}

func (ConstPointerType) Kind() TypeKind { return KindConstPointer }

// PointerType is an owned, writable pointer allocated out of band.
type PointerType struct {
	Elem Type
}

func (PointerType) Kind() TypeKind { return KindPointer }

// VariantCase is one named case of a Variant; Payload is nil for
// payload-less cases.
type VariantCase struct {
	Name    string
	Payload Type
}

// VariantType is a tagged union with a fixed-width discriminant.
type VariantType struct {
	Cases         []VariantCase
	TagRepr       IntKind
	PayloadOffset uint32
	Size          uint32
}

func (VariantType) Kind() TypeKind { return KindVariant }
