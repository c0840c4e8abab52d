package executor

import (
	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/spec"
)

// tableEntry is one live resource as seen from inside the guest: a
// type tag plus the linear-memory region backing it. Keeping the bytes
// in linear memory (rather than a separate Go slice) is what lets
// handleParamPre alias them directly for Resource params (§9 "Aliasing
// of resource bytes").
type tableEntry struct {
	Type   spec.Type
	Offset uint32
	Size   uint32
}

// Table is the in-guest id -> resource map (§4.F), the executor-side
// counterpart of resource.Store. It is intentionally not shared code
// with resource.Store: each child's table is private to that child's
// process, per §5.
type Table struct {
	entries map[uint64]tableEntry
}

// NewTable creates an empty in-guest resource table.
func NewTable() *Table {
	return &Table{entries: make(map[uint64]tableEntry)}
}

// Decl allocates sizeof(handle_type) bytes, writes the supplied handle
// integer, and stores the resulting region under id (§4.F step 2,
// Decl branch). The subkind tag on a handle is host-side bookkeeping
// only; the guest sees every handle as a plain 4-byte integer.
func (t *Table) Decl(mem Memory, alloc Allocator, id uint64, value spec.HandleValue) error {
	const size = 4
	off, err := alloc.Alloc(size, size)
	if err != nil {
		return err
	}
	if err := mem.WriteU32(off, value.Value); err != nil {
		return err
	}
	t.entries[id] = tableEntry{Type: spec.HandleType{}, Offset: off, Size: size}
	return nil
}

// Get looks up a live entry by id.
func (t *Table) Get(id uint64) (tableEntry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// InstallResult records a freshly materialized region as a new
// resource under id (§4.F step 3, Resource{id} branch).
func (t *Table) InstallResult(id uint64, typ spec.Type, offset, size uint32) {
	t.entries[id] = tableEntry{Type: typ, Offset: offset, Size: size}
}

// handleParamPre obtains a pointer (and a count meaningful to the
// caller: byte length for scalars/strings, element count for
// arrays/const-pointers, backing size for owned pointers) for one
// parameter, per §4.F step 2's Call branch.
func handleParamPre(mem Memory, alloc Allocator, table *Table, v spec.ValueSpec) (ptr, length, allocSize, allocAlign uint32, owned bool, err error) {
	switch vv := v.(type) {
	case spec.ResourceRef:
		e, ok := table.Get(vv.ID)
		if !ok {
			return 0, 0, 0, 0, false, errs.New(errs.PhaseExecute, errs.KindMissing).
				Detail("param references unknown resource %d", vv.ID).Build()
		}
		return e.Offset, e.Size, 0, 0, false, nil

	case spec.RawValue:
		ptr, length, allocSize, allocAlign, err = materializeRaw(mem, alloc, table, vv.Type, vv.Body)
		return ptr, length, allocSize, allocAlign, true, err

	default:
		panic("executor: unreachable ValueSpec kind in handleParamPre")
	}
}

// materializeRaw allocates fresh memory sized and shaped by t/body and
// writes the value, returning a pointer, the caller-meaningful count
// described on handleParamPre, and the size/align of the allocation
// itself so the caller can free it later.
func materializeRaw(mem Memory, alloc Allocator, table *Table, t spec.Type, body spec.RawBody) (ptr, length, allocSize, allocAlign uint32, err error) {
	switch b := body.(type) {
	case spec.BuiltinValue:
		size := b.Int.Size()
		off, err := alloc.Alloc(size, size)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if err := writeScalar(mem, off, b); err != nil {
			return 0, 0, 0, 0, err
		}
		return off, size, size, size, nil

	case spec.StringValue:
		off, err := alloc.Alloc(uint32(len(b.Bytes)), 1)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if len(b.Bytes) > 0 {
			if err := mem.Write(off, b.Bytes); err != nil {
				return 0, 0, 0, 0, err
			}
		}
		n := uint32(len(b.Bytes))
		return off, n, n, 1, nil

	case spec.BitflagsValue:
		bt := t.(spec.BitflagsType)
		size := bt.Repr.Size()
		off, err := alloc.Alloc(size, size)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		var packed uint64
		for i, bit := range b.Bits {
			if bit {
				packed |= 1 << uint(i)
			}
		}
		if err := writeWidth(mem, off, size, packed); err != nil {
			return 0, 0, 0, 0, err
		}
		return off, size, size, size, nil

	case spec.HandleValue:
		off, err := alloc.Alloc(4, 4)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if err := mem.WriteU32(off, b.Value); err != nil {
			return 0, 0, 0, 0, err
		}
		return off, 4, 4, 4, nil

	case spec.ArrayValue:
		at := t.(spec.ArrayType)
		itemSize := at.ItemSize
		if itemSize == 0 {
			itemSize = spec.LayoutOf(at.Item).Size
		}
		n := uint32(len(b.Items))
		align := itemAlign(at.Item)
		off, err := alloc.Alloc(itemSize*n, align)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		for i, item := range b.Items {
			if err := writeValueAt(mem, alloc, table, off+uint32(i)*itemSize, at.Item, item); err != nil {
				return 0, 0, 0, 0, err
			}
		}
		return off, n, itemSize * n, align, nil

	case spec.RecordValue:
		rt := t.(spec.RecordType)
		lay := spec.LayoutOf(rt)
		off, err := alloc.Alloc(lay.Size, lay.Align)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		for i, m := range rt.Members {
			if err := writeValueAt(mem, alloc, table, off+m.Offset, m.Type, b.Fields[i].Value); err != nil {
				return 0, 0, 0, 0, err
			}
		}
		return off, lay.Size, lay.Size, lay.Align, nil

	case spec.ConstPointerValue:
		ct := t.(spec.ConstPointerType)
		itemSize := spec.LayoutOf(ct.Elem).Size
		n := uint32(len(b.Items))
		align := itemAlign(ct.Elem)
		off, err := alloc.Alloc(itemSize*n, align)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		for i, item := range b.Items {
			if err := writeValueAt(mem, alloc, table, off+uint32(i)*itemSize, ct.Elem, item); err != nil {
				return 0, 0, 0, 0, err
			}
		}
		return off, n, itemSize * n, align, nil

	case spec.PointerValue:
		size := b.Alloc.Size
		if b.Alloc.Kind == spec.PointerAllocResource {
			e, ok := table.Get(b.Alloc.ResourceID)
			if !ok {
				return 0, 0, 0, 0, errs.New(errs.PhaseExecute, errs.KindMissing).
					Detail("pointer alloc references unknown resource %d", b.Alloc.ResourceID).Build()
			}
			size = e.Size
		}
		off, err := alloc.Alloc(size, 1)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		return off, size, size, 1, nil

	case spec.VariantValue:
		vt := t.(spec.VariantType)
		lay := spec.LayoutOf(vt)
		off, err := alloc.Alloc(lay.Size, lay.Align)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if err := writeWidth(mem, off, vt.TagRepr.Size(), uint64(b.CaseIdx)); err != nil {
			return 0, 0, 0, 0, err
		}
		if b.Payload != nil {
			payloadType := vt.Cases[b.CaseIdx].Payload
			payloadOffset := vt.PayloadOffset
			if payloadOffset == 0 {
				payloadOffset = alignTo(vt.TagRepr.Size(), spec.LayoutOf(payloadType).Align)
			}
			if err := writeValueAt(mem, alloc, table, off+payloadOffset, payloadType, b.Payload); err != nil {
				return 0, 0, 0, 0, err
			}
		}
		return off, lay.Size, lay.Size, lay.Align, nil

	default:
		panic("executor: unreachable RawBody kind in materializeRaw")
	}
}

// writeValueAt writes v's in-place representation at a fixed offset
// (used for Record members and Array/ConstPointer elements). Pointer-
// like element types (String, Array, ConstPointer, Pointer) store a
// 4-byte offset to a separately materialized region rather than inline
// bytes.
func writeValueAt(mem Memory, alloc Allocator, table *Table, offset uint32, t spec.Type, v spec.ValueSpec) error {
	switch t.Kind() {
	case spec.KindString, spec.KindArray, spec.KindConstPointer, spec.KindPointer:
		ptr, _, _, _, _, err := handleParamPre(mem, alloc, table, v)
		if err != nil {
			return err
		}
		return mem.WriteU32(offset, ptr)

	default:
		ptr, _, _, _, _, err := handleParamPre(mem, alloc, table, v)
		if err != nil {
			return err
		}
		size := spec.LayoutOf(t).Size
		data, err := mem.Read(ptr, size)
		if err != nil {
			return err
		}
		return mem.Write(offset, data)
	}
}

func itemAlign(t spec.Type) uint32 {
	l := spec.LayoutOf(t)
	if l.Align == 0 {
		return 1
	}
	return l.Align
}

func alignTo(offset, align uint32) uint32 { return spec.AlignTo(offset, align) }

func writeScalar(mem Memory, off uint32, b spec.BuiltinValue) error {
	size := b.Int.Size()
	v := b.Unsigned
	if isSigned(b.Int) {
		v = uint64(b.Signed)
	}
	return writeWidth(mem, off, size, v)
}

func isSigned(k spec.IntKind) bool {
	switch k {
	case spec.S8, spec.S16, spec.S32, spec.S64:
		return true
	default:
		return false
	}
}

func writeWidth(mem Memory, off uint32, size uint32, v uint64) error {
	switch size {
	case 1:
		return mem.WriteU8(off, uint8(v))
	case 2:
		return mem.WriteU16(off, uint16(v))
	case 4:
		return mem.WriteU32(off, uint32(v))
	case 8:
		return mem.WriteU64(off, v)
	default:
		panic("executor: unreachable integer width in writeWidth")
	}
}

// handleResultPost implements §4.F step 3: free Ignore results (they
// have no representation past this call), install Resource results as
// new table entries. size doubles as the align passed to the matching
// Alloc call in handleCall, which allocates every result slot with
// align == size.
func handleResultPost(alloc Allocator, table *Table, rs spec.ResultSpec, offset, size uint32) {
	switch r := rs.(type) {
	case spec.IgnoreResult:
		alloc.Free(offset, size, size)
	case spec.ResourceResult:
		table.InstallResult(r.ID, r.Type, offset, size)
	default:
		panic("executor: unreachable ResultSpec kind in handleResultPost")
	}
}
