package executor

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/spec"
	"github.com/wasit-fuzz/wasit/wire"
)

// InitialMemorySize is the linear memory an executor process starts
// with; the bump allocator grows it on demand.
const InitialMemorySize = 1 << 20

// Run is the executor's top-level control loop (§4.F): block on a
// framed request, dispatch it, reply, repeat until stdin closes or a
// proc_exit call is served.
func Run(r io.Reader, w io.Writer) error {
	mem := NewLinearMemory(InitialMemorySize)
	alloc := NewBumpAllocator(mem, 0)
	table := NewTable()

	for {
		body, err := wire.ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		req, err := wire.DecodeRequest(body)
		if err != nil {
			// Protocol errors are fatal to the child (§7): abort rather
			// than reply with a best-effort guess.
			Logger().Warn("aborting on malformed request", zap.Error(err))
			return err
		}

		resp, exit, err := handle(mem, alloc, table, req)
		if err != nil {
			return err
		}
		if err := wire.WriteFrame(w, wire.EncodeResponse(resp)); err != nil {
			return err
		}
		if exit {
			return nil
		}
	}
}

func handle(mem Memory, alloc Allocator, table *Table, req wire.Request) (wire.Response, bool, error) {
	switch rr := req.(type) {
	case wire.DeclRequest:
		if err := table.Decl(mem, alloc, rr.ResourceID, rr.Value); err != nil {
			return nil, false, err
		}
		return wire.DeclResponse{}, false, nil

	case wire.CallRequest:
		resp, err := handleCall(mem, alloc, table, rr)
		return resp, rr.Func == spec.ProcExit, err

	default:
		panic("executor: unreachable wire.Request kind in handle")
	}
}

func handleCall(mem Memory, alloc Allocator, table *Table, rr wire.CallRequest) (wire.Response, error) {
	sig, ok := spec.FuncByID(rr.Func)
	if !ok {
		return nil, errs.New(errs.PhaseExecute, errs.KindProtocol).
			Detail("unknown func ordinal %d", rr.Func).Build()
	}

	paramSlots := make([]paramSlot, len(rr.Params))
	for i, v := range rr.Params {
		ptr, length, allocSize, allocAlign, owned, err := handleParamPre(mem, alloc, table, v)
		if err != nil {
			return nil, err
		}
		tag := spec.Param{}
		if i < len(sig.Params) {
			tag = sig.Params[i]
		}
		paramSlots[i] = paramSlot{
			ptr: ptr, length: length, tag: tag,
			owned: owned, allocSize: allocSize, allocAlign: allocAlign,
		}
	}

	resultSlots := make([]resultSlot, len(rr.Results))
	for i, rs := range rr.Results {
		typ := resultType(rs)
		size := spec.LayoutOf(typ).Size
		if size == 0 {
			size = 4
		}
		off, err := alloc.Alloc(size, size)
		if err != nil {
			return nil, err
		}
		p := spec.Param{}
		if i < len(sig.Results) {
			p = sig.Results[i]
		}
		resultSlots[i] = resultSlot{ptr: off, length: size, param: p}
	}

	c := &call{mem: mem, alloc: alloc, table: table, params: paramSlots, results: resultSlots}
	errno := Dispatch(c, rr.Func)

	for i, rs := range rr.Results {
		handleResultPost(alloc, table, rs, resultSlots[i].ptr, resultSlots[i].length)
	}

	paramViews := make([]wire.ValueView, len(paramSlots))
	for i, ps := range paramSlots {
		paramViews[i] = wire.ValueView{
			MemoryOffset: ps.ptr,
			Content:      readPureValue(mem, paramType(rr.Params[i], ps.tag), ps.ptr, ps.length),
		}
	}

	// handle_param_post (§4.F step 4): free every allocation
	// handle_param_pre made for a RawValue param, now that its
	// post-call view has been captured. ResourceRef params alias
	// table-owned bytes and are never freed here.
	for _, ps := range paramSlots {
		if ps.owned {
			alloc.Free(ps.ptr, ps.allocSize, ps.allocAlign)
		}
	}

	resultViews := make([]wire.ValueView, len(resultSlots))
	for i, rs := range resultSlots {
		resultViews[i] = wire.ValueView{
			MemoryOffset: rs.ptr,
			Content:      readPureValue(mem, resultType(rr.Results[i]), rs.ptr, rs.length),
		}
	}

	return wire.CallResponse{Errno: errno, ParamViews: paramViews, ResultViews: resultViews}, nil
}

func resultType(rs spec.ResultSpec) spec.Type {
	switch r := rs.(type) {
	case spec.IgnoreResult:
		return r.Type
	case spec.ResourceResult:
		return r.Type
	default:
		panic("executor: unreachable ResultSpec kind in resultType")
	}
}

func paramType(v spec.ValueSpec, tag spec.Param) spec.Type {
	if raw, ok := v.(spec.RawValue); ok {
		return raw.Type
	}
	return tag.Type
}

// readPureValue reconstructs the post-call view of the value at ptr.
// length carries the element/byte count for the variable-length kinds
// (String, Array) that have no standalone size in their Type. Nested
// pointer-kind fields inside a Record (a member's own allocation size
// is not retained past materialization) are reported as an empty
// Pointer/List view rather than walked recursively.
func readPureValue(mem Memory, t spec.Type, ptr, length uint32) wire.PureValue {
	if t == nil {
		return wire.PureBuiltin{}
	}

	switch tt := t.(type) {
	case spec.Builtin:
		return wire.PureBuiltin{Int: tt.Int, Unsigned: readWidth(mem, ptr, tt.Int.Size())}

	case spec.HandleType:
		v, _ := mem.ReadU32(ptr)
		return wire.PureHandle{Value: v}

	case spec.BitflagsType:
		return wire.PureBuiltin{Int: tt.Repr, Unsigned: readWidth(mem, ptr, tt.Repr.Size())}

	case spec.StringType:
		return wire.PureList{Items: readByteViews(mem, ptr, length)}

	case spec.ArrayType:
		itemSize := tt.ItemSize
		if itemSize == 0 {
			itemSize = spec.LayoutOf(tt.Item).Size
		}
		items := make([]wire.ValueView, length)
		for i := range items {
			off := ptr + uint32(i)*itemSize
			items[i] = wire.ValueView{MemoryOffset: off, Content: readPureValue(mem, tt.Item, off, 0)}
		}
		return wire.PureList{Items: items}

	case spec.RecordType:
		fields := make([]wire.NamedView, len(tt.Members))
		for i, m := range tt.Members {
			off := ptr + m.Offset
			fields[i] = wire.NamedView{
				Name: m.Name,
				View: wire.ValueView{MemoryOffset: off, Content: readPureValue(mem, m.Type, off, 0)},
			}
		}
		return wire.PureRecord{Fields: fields}

	case spec.VariantType:
		tagVal := readWidth(mem, ptr, tt.TagRepr.Size())
		fields := []wire.NamedView{{
			Name: "tag",
			View: wire.ValueView{MemoryOffset: ptr, Content: wire.PureBuiltin{Int: tt.TagRepr, Unsigned: tagVal}},
		}}
		if int(tagVal) < len(tt.Cases) && tt.Cases[tagVal].Payload != nil {
			payloadOff := ptr + tt.PayloadOffset
			fields = append(fields, wire.NamedView{
				Name: tt.Cases[tagVal].Name,
				View: wire.ValueView{MemoryOffset: payloadOff, Content: readPureValue(mem, tt.Cases[tagVal].Payload, payloadOff, 0)},
			})
		}
		return wire.PureRecord{Fields: fields}

	case spec.ConstPointerType, spec.PointerType:
		if length == 0 {
			return wire.PurePointer{}
		}
		return wire.PurePointer{Items: readByteViews(mem, ptr, length)}

	default:
		panic("executor: unreachable Type kind in readPureValue")
	}
}

func readByteViews(mem Memory, ptr, n uint32) []wire.ValueView {
	views := make([]wire.ValueView, n)
	for i := range views {
		off := ptr + uint32(i)
		v, _ := mem.ReadU8(off)
		views[i] = wire.ValueView{MemoryOffset: off, Content: wire.PureBuiltin{Int: spec.U8, Unsigned: uint64(v)}}
	}
	return views
}

func readWidth(mem Memory, ptr, size uint32) uint64 {
	switch size {
	case 1:
		v, _ := mem.ReadU8(ptr)
		return uint64(v)
	case 2:
		v, _ := mem.ReadU16(ptr)
		return uint64(v)
	case 4:
		v, _ := mem.ReadU32(ptr)
		return uint64(v)
	case 8:
		v, _ := mem.ReadU64(ptr)
		return v
	default:
		return 0
	}
}
