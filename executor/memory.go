package executor

import (
	"encoding/binary"

	"github.com/wasit-fuzz/wasit/errs"
)

// Memory is the guest's byte-addressable linear memory: the same
// read/write-at-offset abstraction applies whether the caller is a
// Component Model transcoder or a preview1 value materializer.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// Allocator allocates and frees regions of a Memory.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// LinearMemory is a Memory backed by a plain Go byte slice: the
// guest's own linear memory when the executor is compiled for
// GOOS=wasip1 and run inside a WASI runtime, or an in-process stand-in
// for orchestrator.EmbeddedChild and tests.
type LinearMemory struct {
	buf []byte
}

// NewLinearMemory creates a LinearMemory of the given initial size.
func NewLinearMemory(size uint32) *LinearMemory {
	return &LinearMemory{buf: make([]byte, size)}
}

// Grow extends the backing buffer by delta bytes, returning the
// previous size in bytes (bytes, not the 64 KiB pages that wasm
// memory.grow counts in).
func (m *LinearMemory) Grow(delta uint32) uint32 {
	prev := uint32(len(m.buf))
	m.buf = append(m.buf, make([]byte, delta)...)
	return prev
}

// Size reports the current memory size in bytes.
func (m *LinearMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *LinearMemory) bounds(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return errs.New(errs.PhaseExecute, errs.KindInvalidData).
			Detail("memory access [%d,%d) out of bounds (size %d)", offset, offset+length, len(m.buf)).Build()
	}
	return nil
}

func (m *LinearMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.bounds(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:offset+length])
	return out, nil
}

func (m *LinearMemory) Write(offset uint32, data []byte) error {
	if err := m.bounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *LinearMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.bounds(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

func (m *LinearMemory) ReadU16(offset uint32) (uint16, error) {
	if err := m.bounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[offset:]), nil
}

func (m *LinearMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

func (m *LinearMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.bounds(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

func (m *LinearMemory) WriteU8(offset uint32, value uint8) error {
	if err := m.bounds(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = value
	return nil
}

func (m *LinearMemory) WriteU16(offset uint32, value uint16) error {
	if err := m.bounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[offset:], value)
	return nil
}

func (m *LinearMemory) WriteU32(offset uint32, value uint32) error {
	if err := m.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], value)
	return nil
}

func (m *LinearMemory) WriteU64(offset uint32, value uint64) error {
	if err := m.bounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], value)
	return nil
}

// BumpAllocator is a simple monotonically growing allocator over a
// LinearMemory; Free is a bookkeeping no-op beyond the matched-pair
// invariant the caller must uphold (§4.F "Memory management") since a
// bump allocator cannot reclaim individual regions.
type BumpAllocator struct {
	mem    *LinearMemory
	offset uint32
}

// NewBumpAllocator creates an allocator starting allocations at offset
// start within mem.
func NewBumpAllocator(mem *LinearMemory, start uint32) *BumpAllocator {
	return &BumpAllocator{mem: mem, offset: start}
}

func (a *BumpAllocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	start := (a.offset + align - 1) &^ (align - 1)
	end := start + size
	if end > a.mem.Size() {
		a.mem.Grow(end - a.mem.Size())
	}
	a.offset = end
	return start, nil
}

// Free is a no-op for a bump allocator; callers still must call it
// exactly once per Alloc so the allocation-tracking invariant in
// §4.F holds even though nothing is reclaimed here.
func (a *BumpAllocator) Free(ptr, size, align uint32) {}
