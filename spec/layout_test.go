package spec

import "testing"

func TestLayoutOfBuiltin(t *testing.T) {
	tests := []struct {
		kind IntKind
		size uint32
	}{
		{U8, 1}, {S8, 1},
		{U16, 2}, {S16, 2},
		{U32, 4}, {S32, 4}, {Char, 4},
		{U64, 8}, {S64, 8},
	}
	for _, tt := range tests {
		l := LayoutOf(Builtin{Int: tt.kind})
		if l.Size != tt.size || l.Align != tt.size {
			t.Errorf("LayoutOf(Builtin{%s}) = %+v, want size/align %d", tt.kind, l, tt.size)
		}
	}
}

func TestLayoutOfRecord(t *testing.T) {
	rt := RecordType{
		Members: []RecordMember{
			{Name: "a", Type: Builtin{Int: U8}, Offset: 0},
			{Name: "b", Type: Builtin{Int: U32}, Offset: 4},
		},
		Size: 8,
	}
	l := LayoutOf(rt)
	if l.Size != 8 || l.Align != 4 {
		t.Fatalf("got size=%d align=%d, want 8/4", l.Size, l.Align)
	}
	if l.FieldOffsets["a"] != 0 || l.FieldOffsets["b"] != 4 {
		t.Fatalf("unexpected field offsets: %+v", l.FieldOffsets)
	}
}

func TestLayoutOfVariant(t *testing.T) {
	vt := VariantType{
		Cases: []VariantCase{
			{Name: "none"},
			{Name: "some", Payload: Builtin{Int: U32}},
		},
		TagRepr: U8,
	}
	l := LayoutOf(vt)
	// tag (1 byte) aligned up to payload align (4), then payload (4 bytes).
	if l.Size != 8 || l.Align != 4 {
		t.Fatalf("got size=%d align=%d, want 8/4", l.Size, l.Align)
	}
}

func TestLayoutOfBitflags(t *testing.T) {
	bf := BitflagsType{Members: []string{"a", "b", "c"}, Repr: U8}
	l := LayoutOf(bf)
	if l.Size != 1 || l.Align != 1 {
		t.Fatalf("got %+v, want size/align 1", l)
	}
}

func TestValidateRecordOverflow(t *testing.T) {
	rt := RecordType{
		Members: []RecordMember{
			{Name: "a", Type: Builtin{Int: U64}, Offset: 4},
		},
		Size: 8,
	}
	if err := Validate(rt); err == nil {
		t.Fatal("expected overflow error, got nil")
	}
}

func TestValidateBitflagsOverflow(t *testing.T) {
	members := make([]string, 9)
	for i := range members {
		members[i] = "m"
	}
	bf := BitflagsType{Members: members, Repr: U8}
	if err := Validate(bf); err == nil {
		t.Fatal("expected overflow error, got nil")
	}
}

func TestValidateNested(t *testing.T) {
	rt := RecordType{
		Members: []RecordMember{
			{Name: "inner", Type: VariantType{
				Cases: []VariantCase{
					{Name: "x", Payload: Builtin{Int: U64}},
				},
				TagRepr: U8,
				Size:    4, // too small for an 8-byte payload
			}, Offset: 0},
		},
		Size: 16,
	}
	if err := Validate(rt); err == nil {
		t.Fatal("expected nested variant overflow error, got nil")
	}
}
