package orchestrator

import (
	"reflect"

	"golang.org/x/sys/unix"

	"github.com/wasit-fuzz/wasit/wire"
)

// NormalizeErrno coalesces errno aliases per the fixed table in §7:
// EINTR and EAGAIN both mean "retry me", so a runtime that surfaces
// one where another surfaces the other is not a divergence. EINVAL and
// ENOTSUP are kept distinct since they mean different things for an
// unimplemented call.
func NormalizeErrno(errno int32) int32 {
	if errno == int32(unix.EINTR) {
		return int32(unix.EAGAIN)
	}
	return errno
}

// Normalize strips address-space-specific detail from a PureValue tree
// so that content can be compared across children with independent
// linear memories (§9 "Offsets vs pointers": memory_offset is
// diagnostic, not semantic). The raw ValueViews with their offsets are
// still kept on the divergence record for inspection.
func Normalize(v wire.PureValue) wire.PureValue {
	switch vv := v.(type) {
	case wire.PureBuiltin, wire.PureHandle:
		return vv

	case wire.PureList:
		return wire.PureList{Items: normalizeViews(vv.Items)}

	case wire.PureRecord:
		fields := make([]wire.NamedView, len(vv.Fields))
		for i, f := range vv.Fields {
			fields[i] = wire.NamedView{Name: f.Name, View: normalizeView(f.View)}
		}
		return wire.PureRecord{Fields: fields}

	case wire.PurePointer:
		return wire.PurePointer{Items: normalizeViews(vv.Items)}

	default:
		panic("orchestrator: unreachable PureValue kind in Normalize")
	}
}

func normalizeView(v wire.ValueView) wire.ValueView {
	return wire.ValueView{MemoryOffset: 0, Content: Normalize(v.Content)}
}

func normalizeViews(views []wire.ValueView) []wire.ValueView {
	out := make([]wire.ValueView, len(views))
	for i, v := range views {
		out[i] = normalizeView(v)
	}
	return out
}

// Equal reports whether two PureValue trees are deeply equal. It does
// not normalize; callers pass values that have already been through
// Normalize.
func Equal(a, b wire.PureValue) bool {
	return reflect.DeepEqual(a, b)
}

// flattenBytes packs a PureValue's scalar content into a byte slice in
// declaration order, giving the host-side resource.Store a concrete
// backing for a produced resource (§8 property 2). Nested pointer-kind
// content is not expanded further than the wire already reconstructed
// it into ValueViews.
func flattenBytes(v wire.PureValue) []byte {
	switch vv := v.(type) {
	case wire.PureBuiltin:
		return littleEndian(vv.Unsigned, vv.Int.Size())

	case wire.PureHandle:
		return littleEndian(uint64(vv.Value), 4)

	case wire.PureList:
		var out []byte
		for _, item := range vv.Items {
			out = append(out, flattenBytes(item.Content)...)
		}
		return out

	case wire.PureRecord:
		var out []byte
		for _, f := range vv.Fields {
			out = append(out, flattenBytes(f.View.Content)...)
		}
		return out

	case wire.PurePointer:
		var out []byte
		for _, item := range vv.Items {
			out = append(out, flattenBytes(item.Content)...)
		}
		return out

	default:
		panic("orchestrator: unreachable PureValue kind in flattenBytes")
	}
}

func littleEndian(v uint64, size uint32) []byte {
	out := make([]byte, size)
	for i := uint32(0); i < size; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}
