package spec

// Layout describes the size and alignment of a materialized value, plus
// field offsets for Record types. String and Array have no standalone
// layout — their size is carried by the value, not the type.
type Layout struct {
	FieldOffsets map[string]uint32
	Size         uint32
	Align        uint32
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// DiscriminantSize returns the byte width of a variant/bitflags
// discriminant wide enough to hold numCases distinct values, using the
// same 1/2/4/8-byte stepping a canonical-ABI size calculator uses for
// WIT variants.
func DiscriminantSize(numCases int) uint32 {
	switch {
	case numCases <= 1<<8:
		return 1
	case numCases <= 1<<16:
		return 2
	case numCases <= 1<<32:
		return 4
	default:
		return 8
	}
}

// LayoutOf computes size/align for every Type kind per §3's invariants.
// String and Array return a zero Layout since they have no standalone
// size; callers materializing a concrete value compute size from the
// value itself (length * item size, or string byte length).
func LayoutOf(t Type) Layout {
	switch tt := t.(type) {
	case Builtin:
		sz := tt.Int.Size()
		return Layout{Size: sz, Align: sz}
	case StringType:
		return Layout{}
	case BitflagsType:
		sz := tt.Repr.Size()
		return Layout{Size: sz, Align: sz}
	case HandleType:
		return Layout{Size: 4, Align: 4}
	case ArrayType:
		return Layout{}
	case RecordType:
		return layoutRecord(tt)
	case ConstPointerType:
		return Layout{Size: 4, Align: 4}
	case PointerType:
		return Layout{Size: 4, Align: 4}
	case VariantType:
		return layoutVariant(tt)
	default:
		panic("spec: unreachable Type kind in LayoutOf")
	}
}

func layoutRecord(r RecordType) Layout {
	offsets := make(map[string]uint32, len(r.Members))
	maxAlign := uint32(1)
	offset := uint32(0)

	for _, m := range r.Members {
		ml := LayoutOf(m.Type)
		offset = AlignTo(offset, ml.Align)
		offsets[m.Name] = offset
		if ml.Align > maxAlign {
			maxAlign = ml.Align
		}
		offset += ml.Size
	}

	size := AlignTo(offset, maxAlign)
	if r.Size > size {
		size = r.Size
	}

	return Layout{Size: size, Align: maxAlign, FieldOffsets: offsets}
}

func layoutVariant(v VariantType) Layout {
	tagSize := v.TagRepr.Size()
	if tagSize == 0 {
		tagSize = DiscriminantSize(len(v.Cases))
	}

	maxAlign := tagSize
	maxPayload := uint32(0)
	for _, c := range v.Cases {
		if c.Payload == nil {
			continue
		}
		pl := LayoutOf(c.Payload)
		if pl.Align > maxAlign {
			maxAlign = pl.Align
		}
		if pl.Size > maxPayload {
			maxPayload = pl.Size
		}
	}

	payloadOffset := AlignTo(tagSize, maxAlign)
	size := AlignTo(payloadOffset+maxPayload, maxAlign)
	if v.Size > size {
		size = v.Size
	}

	return Layout{Size: size, Align: maxAlign}
}

// Validate checks the §3 structural invariants for t, recursing into
// nested types. It does not check ValueSpec bodies.
func Validate(t Type) error {
	switch tt := t.(type) {
	case RecordType:
		for _, m := range tt.Members {
			ml := LayoutOf(m.Type)
			if m.Offset+ml.Size > tt.Size {
				return recordOverflowErr(m.Name, m.Offset, ml.Size, tt.Size)
			}
			if err := Validate(m.Type); err != nil {
				return err
			}
		}
		return nil
	case VariantType:
		vl := layoutVariant(tt)
		if vl.Size > tt.Size && tt.Size != 0 {
			return variantOverflowErr(vl.Size, tt.Size)
		}
		for _, c := range tt.Cases {
			if c.Payload != nil {
				if err := Validate(c.Payload); err != nil {
					return err
				}
			}
		}
		return nil
	case BitflagsType:
		if uint32(len(tt.Members)) > tt.Repr.Size()*8 {
			return bitflagsOverflowErr(len(tt.Members), tt.Repr)
		}
		return nil
	case ArrayType:
		return Validate(tt.Item)
	case ConstPointerType:
		return Validate(tt.Elem)
	case PointerType:
		return Validate(tt.Elem)
	default:
		return nil
	}
}
