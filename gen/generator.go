package gen

import (
	"strings"

	"github.com/wasit-fuzz/wasit/resource"
	"github.com/wasit-fuzz/wasit/spec"
)

// Generator produces spec.ValueSpec trees against a resource.Store
// snapshot, following the algorithm sketch of §4.C.
type Generator struct {
	Store    *resource.Store
	Controls Controls
	Oracle   ConstraintOracle // optional, may be nil
}

// New creates a Generator bound to store with the given controls.
func New(store *resource.Store, controls Controls) *Generator {
	return &Generator{Store: store, Controls: controls}
}

// Generate produces a ValueSpec of type t, recursing up to
// Controls.MaxDepth. It fails with *ErrNoLiveResource when a Handle
// cannot be satisfied from the current store snapshot.
func (g *Generator) Generate(t spec.Type) (spec.ValueSpec, error) {
	return g.generate(t, 0)
}

func (g *Generator) generate(t spec.Type, depth int) (spec.ValueSpec, error) {
	if depth > g.Controls.MaxDepth {
		return nil, depthExceeded(nil)
	}

	switch tt := t.(type) {
	case spec.Builtin:
		return g.genBuiltin(tt), nil
	case spec.StringType:
		return g.genString(), nil
	case spec.BitflagsType:
		return g.genBitflags(tt), nil
	case spec.HandleType:
		return g.genHandle(tt)
	case spec.ArrayType:
		return g.genArray(tt, depth)
	case spec.RecordType:
		return g.genRecord(tt, depth)
	case spec.ConstPointerType:
		return g.genConstPointer(tt, depth)
	case spec.PointerType:
		return g.genPointer(tt, depth)
	case spec.VariantType:
		return g.genVariant(tt, depth)
	default:
		panic("gen: unreachable Type kind in generate")
	}
}

// genHandle implements §4.C step 1: choose uniformly among live
// resources of the requested handle sub-kind.
func (g *Generator) genHandle(t spec.HandleType) (spec.ValueSpec, error) {
	candidates := g.Store.ByHandleSubKind(t.SubKind)
	if len(candidates) == 0 {
		return nil, noLiveResource(t.SubKind)
	}
	id := candidates[g.Controls.intn(len(candidates))]
	return spec.ResourceRef{ID: id}, nil
}

// genBitflags implements §4.C step 2: draw a random subset respecting
// Controls.GenerateFlags.
func (g *Generator) genBitflags(t spec.BitflagsType) spec.ValueSpec {
	bits := make([]bool, len(t.Members))
	if g.Controls.GenerateFlags {
		for i := range bits {
			bits[i] = g.Controls.boolean()
		}
	}
	return spec.RawValue{Type: t, Body: spec.BitflagsValue{Bits: bits}}
}

// genArray implements §4.C step 3.
func (g *Generator) genArray(t spec.ArrayType, depth int) (spec.ValueSpec, error) {
	n := g.Controls.intn(g.Controls.MaxArrayLen + 1)
	items := make([]spec.ValueSpec, 0, n)
	for i := 0; i < n; i++ {
		v, err := g.generate(t.Item, depth+1)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return spec.RawValue{Type: t, Body: spec.ArrayValue{Items: items}}, nil
}

// genRecord implements §4.C step 4: one ValueSpec per member in
// declaration order.
func (g *Generator) genRecord(t spec.RecordType, depth int) (spec.ValueSpec, error) {
	fields := make([]spec.RecordField, 0, len(t.Members))
	for _, m := range t.Members {
		v, err := g.generate(m.Type, depth+1)
		if err != nil {
			return nil, err
		}
		fields = append(fields, spec.RecordField{Name: m.Name, Value: v})
	}
	return spec.RawValue{Type: t, Body: spec.RecordValue{Fields: fields}}, nil
}

// genConstPointer implements §4.C step 5: a length and a list of
// element ValueSpecs. Elements are generated fresh and copied by value
// (§9 open question, resolved: no back-propagation on mutation).
func (g *Generator) genConstPointer(t spec.ConstPointerType, depth int) (spec.ValueSpec, error) {
	n := g.Controls.intn(g.Controls.MaxArrayLen + 1)
	items := make([]spec.ValueSpec, 0, n)
	for i := 0; i < n; i++ {
		v, err := g.generate(t.Elem, depth+1)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return spec.RawValue{Type: t, Body: spec.ConstPointerValue{Items: items}}, nil
}

// genPointer implements §4.C step 6: choose alloc as either a constant
// u32 size or a reference to a live resource whose value dictates size.
func (g *Generator) genPointer(t spec.PointerType, depth int) (spec.ValueSpec, error) {
	elemSize := spec.LayoutOf(t.Elem).Size
	if elemSize == 0 {
		elemSize = 1
	}

	if g.Controls.boolean() {
		sizers := g.Store.ByHandleSubKind("size")
		if len(sizers) > 0 {
			id := sizers[g.Controls.intn(len(sizers))]
			return spec.RawValue{Type: t, Body: spec.PointerValue{
				Alloc: spec.PointerAlloc{Kind: spec.PointerAllocResource, ResourceID: id},
			}}, nil
		}
	}

	n := uint32(g.Controls.intn(g.Controls.MaxArrayLen+1)) + 1
	return spec.RawValue{Type: t, Body: spec.PointerValue{
		Alloc: spec.PointerAlloc{Kind: spec.PointerAllocConst, Size: n * elemSize},
	}}, nil
}

// genVariant implements §4.C step 7: choose a case, recurse on its
// payload if any.
func (g *Generator) genVariant(t spec.VariantType, depth int) (spec.ValueSpec, error) {
	idx := g.Controls.intn(len(t.Cases))
	c := t.Cases[idx]

	var payload spec.ValueSpec
	if c.Payload != nil {
		v, err := g.generate(c.Payload, depth+1)
		if err != nil {
			return nil, err
		}
		payload = v
	}

	return spec.RawValue{Type: t, Body: spec.VariantValue{
		CaseIdx: uint32(idx),
		Payload: payload,
	}}, nil
}

// genString implements §4.C step 8: random bytes, biased toward known
// preopen path prefixes when MountBaseDir is set.
func (g *Generator) genString() spec.ValueSpec {
	if g.Controls.MountBaseDir != "" && g.Controls.boolean() {
		suffix := g.randomComponent()
		path := strings.TrimSuffix(g.Controls.MountBaseDir, "/") + "/" + suffix
		return spec.RawValue{Type: spec.StringType{}, Body: spec.StringValue{Bytes: []byte(path)}}
	}

	n := g.Controls.intn(g.Controls.MaxStringLen + 1)
	buf := make([]byte, n)
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_.-"
	for i := range buf {
		buf[i] = alphabet[g.Controls.intn(len(alphabet))]
	}
	return spec.RawValue{Type: spec.StringType{}, Body: spec.StringValue{Bytes: buf}}
}

func (g *Generator) randomComponent() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	n := 1 + g.Controls.intn(8)
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = alphabet[g.Controls.intn(len(alphabet))]
	}
	return string(buf)
}

// genBuiltin draws a scalar. When Controls.GenerateNumericals is false,
// integers are drawn from a small, boring range (0 or 1) biasing
// toward cheap edge cases rather than full entropy.
func (g *Generator) genBuiltin(t spec.Builtin) spec.ValueSpec {
	if !g.Controls.GenerateNumericals {
		edge := []uint64{0, 1}
		v := edge[g.Controls.intn(len(edge))]
		return spec.RawValue{Type: t, Body: spec.BuiltinValue{Int: t.Int, Unsigned: v, Signed: int64(v)}}
	}

	switch t.Int {
	case spec.U8:
		v := uint64(g.Controls.uint32n(1 << 8))
		return spec.RawValue{Type: t, Body: spec.BuiltinValue{Int: t.Int, Unsigned: v}}
	case spec.U16:
		v := uint64(g.Controls.uint32n(1 << 16))
		return spec.RawValue{Type: t, Body: spec.BuiltinValue{Int: t.Int, Unsigned: v}}
	case spec.U32:
		v := uint64(g.Controls.RNG.Uint32())
		return spec.RawValue{Type: t, Body: spec.BuiltinValue{Int: t.Int, Unsigned: v}}
	case spec.U64:
		v := g.Controls.RNG.Uint64()
		return spec.RawValue{Type: t, Body: spec.BuiltinValue{Int: t.Int, Unsigned: v}}
	case spec.S8, spec.S16, spec.S32, spec.S64:
		v := int64(g.Controls.RNG.Uint64())
		return spec.RawValue{Type: t, Body: spec.BuiltinValue{Int: t.Int, Signed: v}}
	case spec.Char:
		// Keep generated chars in the ASCII range so downstream string
		// assembly never needs to reject an unpaired surrogate.
		v := uint64(0x20 + g.Controls.intn(0x7e-0x20))
		return spec.RawValue{Type: t, Body: spec.BuiltinValue{Int: t.Int, Unsigned: v}}
	default:
		panic("gen: unreachable IntKind in genBuiltin")
	}
}
