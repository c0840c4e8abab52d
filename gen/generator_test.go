package gen

import (
	"errors"
	"testing"

	"github.com/wasit-fuzz/wasit/resource"
	"github.com/wasit-fuzz/wasit/spec"
)

func newTestGenerator(seed uint64) (*Generator, *resource.Store) {
	store := resource.New()
	ctl := DefaultControls(seed)
	return New(store, ctl), store
}

func TestGenerateBuiltin(t *testing.T) {
	g, _ := newTestGenerator(1)
	v, err := g.Generate(spec.Builtin{Int: spec.U32})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	raw, ok := v.(spec.RawValue)
	if !ok {
		t.Fatalf("got %T, want spec.RawValue", v)
	}
	if _, ok := raw.Body.(spec.BuiltinValue); !ok {
		t.Fatalf("got body %T, want spec.BuiltinValue", raw.Body)
	}
}

func TestGenerateStringNoNulTerminator(t *testing.T) {
	g, _ := newTestGenerator(2)
	v, err := g.Generate(spec.StringType{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	raw := v.(spec.RawValue)
	sv := raw.Body.(spec.StringValue)
	for _, b := range sv.Bytes {
		if b == 0 {
			t.Fatalf("string body contains a NUL byte: %v", sv.Bytes)
		}
	}
}

func TestGenerateHandleNoLiveResource(t *testing.T) {
	g, _ := newTestGenerator(3)
	_, err := g.Generate(spec.HandleType{SubKind: "dir"})
	var nle *ErrNoLiveResource
	if !errors.As(err, &nle) {
		t.Fatalf("expected ErrNoLiveResource, got %v", err)
	}
}

func TestGenerateHandlePicksLiveResource(t *testing.T) {
	g, store := newTestGenerator(4)
	if err := store.Decl(100, spec.HandleType{SubKind: "dir"}, []byte{100, 0, 0, 0}); err != nil {
		t.Fatalf("Decl: %v", err)
	}

	v, err := g.Generate(spec.HandleType{SubKind: "dir"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ref, ok := v.(spec.ResourceRef)
	if !ok {
		t.Fatalf("got %T, want spec.ResourceRef", v)
	}
	if ref.ID != 100 {
		t.Fatalf("got id %d, want 100", ref.ID)
	}
}

func TestGenerateArrayRespectsMaxLen(t *testing.T) {
	g, _ := newTestGenerator(5)
	g.Controls.MaxArrayLen = 3
	at := spec.ArrayType{Item: spec.Builtin{Int: spec.U8}, ItemSize: 1}

	for i := 0; i < 20; i++ {
		v, err := g.Generate(at)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		items := v.(spec.RawValue).Body.(spec.ArrayValue).Items
		if len(items) > g.Controls.MaxArrayLen {
			t.Fatalf("array length %d exceeds MaxArrayLen %d", len(items), g.Controls.MaxArrayLen)
		}
	}
}

func TestGenerateRecordFieldOrder(t *testing.T) {
	g, _ := newTestGenerator(6)
	rt := spec.RecordType{
		Members: []spec.RecordMember{
			{Name: "a", Type: spec.Builtin{Int: spec.U8}, Offset: 0},
			{Name: "b", Type: spec.Builtin{Int: spec.U32}, Offset: 4},
		},
		Size: 8,
	}
	v, err := g.Generate(rt)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	fields := v.(spec.RawValue).Body.(spec.RecordValue).Fields
	if len(fields) != 2 || fields[0].Name != "a" || fields[1].Name != "b" {
		t.Fatalf("unexpected field order: %+v", fields)
	}
}

func TestGenerateVariantCaseInRange(t *testing.T) {
	g, _ := newTestGenerator(7)
	vt := spec.VariantType{
		Cases: []spec.VariantCase{
			{Name: "ok", Payload: spec.Builtin{Int: spec.U32}},
			{Name: "err", Payload: nil},
		},
		TagRepr: spec.U8,
	}
	for i := 0; i < 20; i++ {
		v, err := g.Generate(vt)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		vv := v.(spec.RawValue).Body.(spec.VariantValue)
		if int(vv.CaseIdx) >= len(vt.Cases) {
			t.Fatalf("case index %d out of range", vv.CaseIdx)
		}
		if vv.CaseIdx == 1 && vv.Payload != nil {
			t.Fatalf("payload-less case produced a payload: %+v", vv.Payload)
		}
	}
}

func TestGenerateDepthExceeded(t *testing.T) {
	g, _ := newTestGenerator(8)
	g.Controls.MaxDepth = 0

	// A self-referential-depth array: depth 0 is the top-level call, its
	// item is already depth 1, which exceeds MaxDepth of 0.
	at := spec.ArrayType{Item: spec.Builtin{Int: spec.U8}, ItemSize: 1}
	g.Controls.MaxArrayLen = 1
	// lengths are 0 or 1; retry until a non-empty draw makes the recursive
	// generate() call happen
	for i := 0; i < 50; i++ {
		_, err := g.Generate(at)
		if err != nil {
			return
		}
	}
	t.Skip("depth-exceeded path not hit with this seed; non-deterministic array length")
}

func TestGenerateDeterministicUnderSameSeed(t *testing.T) {
	ty := spec.RecordType{
		Members: []spec.RecordMember{
			{Name: "x", Type: spec.Builtin{Int: spec.U32}, Offset: 0},
			{Name: "y", Type: spec.StringType{}, Offset: 4},
		},
	}

	g1, _ := newTestGenerator(42)
	g2, _ := newTestGenerator(42)

	v1, err := g1.Generate(ty)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	v2, err := g2.Generate(ty)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	f1 := v1.(spec.RawValue).Body.(spec.RecordValue).Fields
	f2 := v2.(spec.RawValue).Body.(spec.RecordValue).Fields
	s1 := f1[1].Value.(spec.RawValue).Body.(spec.StringValue).Bytes
	s2 := f2[1].Value.(spec.RawValue).Body.(spec.StringValue).Bytes
	if string(s1) != string(s2) {
		t.Fatalf("same seed produced different strings: %q vs %q", s1, s2)
	}
}
