package executor

import (
	"runtime"
	"syscall"
	"time"

	"github.com/wasit-fuzz/wasit/spec"
)

// call is one decoded parameter/result pointer pair, keyed by the
// FuncSig's declared order, handed to the per-function dispatch body.
type call struct {
	mem     Memory
	alloc   Allocator
	table   *Table
	params  []paramSlot
	results []resultSlot
}

type paramSlot struct {
	ptr, length uint32
	tag         spec.Param

	// owned, allocSize and allocAlign describe the handle_param_pre
	// allocation this slot came from, so handleCall can free it after
	// the call completes (§4.F "handle_param_post"). owned is false
	// for ResourceRef params, whose bytes are aliased from the table
	// rather than freshly allocated.
	owned                 bool
	allocSize, allocAlign uint32
}

type resultSlot struct {
	ptr, length uint32
	param       spec.Param
}

// errnoUnsupported is returned for preview1 functions this executor
// declines to implement (e.g. socket functions: WASIT never grants
// guests a socket capability, only a preopened directory, per §6
// "Filesystem").
const errnoUnsupported int32 = 58 // ENOTSUP in WASI preview1 errno numbering

// Dispatch maps a decoded call to the actual WASI preview1 host import.
// It lowers entirely through package syscall, which under GOOS=wasip1
// implements the preview1 ABI directly: path arguments resolve against
// the guest's sole preopened directory the same way the standard
// library resolves them for any wasip1 binary, so there is no
// dirfd-relative *at() call to reach for. The two symbols that
// genuinely differ in shape between wasip1's syscall package and every
// other GOOS (random-byte generation and a stat's file-type tag) are
// isolated behind randomRead/filetypeOf in platform_wasip1.go and
// platform_other.go, so the rest of this file — and the tests that
// exercise it — build and run on an ordinary host GOOS too.
func Dispatch(c *call, id spec.FuncID) (errno int32) {
	switch id {
	case spec.FdClose:
		fd := readHandle(c, 0)
		if err := syscall.Close(fd); err != nil {
			return errnoOf(err)
		}
		return 0

	case spec.FdWrite, spec.FdPwrite:
		return dispatchWritev(c, id == spec.FdPwrite)

	case spec.FdRead, spec.FdPread:
		return dispatchReadv(c, id == spec.FdPread)

	case spec.FdSeek:
		fd := readHandle(c, 0)
		offset := int64(readU64(c, 1))
		whence := int(readU8(c, 2))
		newOff, err := syscall.Seek(fd, offset, whence)
		if err != nil {
			return errnoOf(err)
		}
		writeResultU64(c, 0, uint64(newOff))
		return 0

	case spec.FdTell:
		fd := readHandle(c, 0)
		newOff, err := syscall.Seek(fd, 0, 1)
		if err != nil {
			return errnoOf(err)
		}
		writeResultU64(c, 0, uint64(newOff))
		return 0

	case spec.FdSync:
		fd := readHandle(c, 0)
		if err := syscall.Fsync(fd); err != nil {
			return errnoOf(err)
		}
		return 0

	case spec.FdDatasync:
		fd := readHandle(c, 0)
		if err := syscall.Fsync(fd); err != nil {
			return errnoOf(err)
		}
		return 0

	case spec.FdFdstatGet:
		fd := readHandle(c, 0)
		var st syscall.Stat_t
		if err := syscall.Fstat(fd, &st); err != nil {
			return errnoOf(err)
		}
		writeFdstat(c, 0, st)
		return 0

	case spec.FdFilestatGet:
		fd := readHandle(c, 0)
		var st syscall.Stat_t
		if err := syscall.Fstat(fd, &st); err != nil {
			return errnoOf(err)
		}
		writeFilestat(c, 0, st)
		return 0

	case spec.FdPrestatGet:
		writePrestat(c, 0, 0)
		return 0

	case spec.FdPrestatDirName:
		return dispatchPrestatDirName(c)

	case spec.PathOpen:
		return dispatchPathOpen(c)

	case spec.PathCreateDirectory:
		path := readString(c, 1)
		if err := syscall.Mkdir(path, 0o755); err != nil {
			return errnoOf(err)
		}
		return 0

	case spec.PathRemoveDirectory:
		path := readString(c, 1)
		if err := syscall.Rmdir(path); err != nil {
			return errnoOf(err)
		}
		return 0

	case spec.PathUnlinkFile:
		path := readString(c, 1)
		if err := syscall.Unlink(path); err != nil {
			return errnoOf(err)
		}
		return 0

	case spec.PathFilestatGet:
		path := readString(c, 2)
		var st syscall.Stat_t
		if err := syscall.Stat(path, &st); err != nil {
			return errnoOf(err)
		}
		writeFilestat(c, 0, st)
		return 0

	case spec.RandomGet:
		buf := make([]byte, readU32(c, 1))
		if err := randomRead(buf); err != nil {
			return errnoOf(err)
		}
		c.mem.Write(c.params[0].ptr, buf)
		return 0

	case spec.ClockResGet:
		writeResultU64(c, 0, 1)
		return 0

	case spec.ClockTimeGet:
		writeResultU64(c, 0, uint64(time.Now().UnixNano()))
		return 0

	case spec.SchedYield:
		runtime.Gosched()
		return 0

	case spec.ProcExit:
		// No host call is made here: Dispatch returns 0, and the control
		// loop ends after replying to a proc_exit request.
		return 0

	case spec.ProcRaise, spec.FdAdvise, spec.FdAllocate, spec.FdFdstatSetFlags,
		spec.FdFdstatSetRights, spec.FdFilestatSetSize, spec.FdFilestatSetTimes,
		spec.FdRenumber, spec.FdReaddir, spec.PathFilestatSetTimes, spec.PathLink,
		spec.PathReadlink, spec.PathRename, spec.PathSymlink, spec.PollOneoff,
		spec.ArgsGet, spec.ArgsSizesGet, spec.EnvironGet, spec.EnvironSizesGet,
		spec.SockAccept, spec.SockRecv, spec.SockSend, spec.SockShutdown:
		return errnoUnsupported

	default:
		panic("executor: unreachable FuncID in Dispatch")
	}
}

func dispatchWritev(c *call, pwrite bool) int32 {
	fd := readHandle(c, 0)
	bufs := readIovecBytes(c, 1)
	var offset int64
	if pwrite {
		offset = int64(readU64(c, 3))
	}

	var total int
	for _, b := range bufs {
		n, err := retryingWrite(fd, b, pwrite, offset+int64(total))
		total += n
		if err != nil {
			writeResultU32(c, 0, uint32(total))
			return errnoOf(err)
		}
		if n < len(b) {
			break
		}
	}
	writeResultU32(c, 0, uint32(total))
	return 0
}

func dispatchReadv(c *call, pread bool) int32 {
	fd := readHandle(c, 0)
	lens := readIovecLens(c, 1)
	var offset int64
	if pread {
		offset = int64(readU64(c, 3))
	}

	var total int
	for i, l := range lens {
		buf := make([]byte, l)
		n, err := retryingRead(fd, buf, pread, offset+int64(total))
		total += n
		if n > 0 {
			writeIovecData(c, 1, i, buf[:n])
		}
		if err != nil {
			writeResultU32(c, 0, uint32(total))
			return errnoOf(err)
		}
		if n < l {
			break
		}
	}
	writeResultU32(c, 0, uint32(total))
	return 0
}

// retryingWrite/retryingRead implement §4.F point 6 / §5 "Partial I/O":
// retry transparently on EINTR/EAGAIN until the buffer is exhausted or
// a non-retriable errno is hit.
func retryingWrite(fd int, buf []byte, positioned bool, offset int64) (int, error) {
	var total int
	for total < len(buf) {
		var n int
		var err error
		if positioned {
			n, err = syscall.Pwrite(fd, buf[total:], offset+int64(total))
		} else {
			n, err = syscall.Write(fd, buf[total:])
		}
		if n > 0 {
			total += n
		}
		if err == nil {
			continue
		}
		if err == syscall.EINTR || err == syscall.EAGAIN {
			continue
		}
		return total, err
	}
	return total, nil
}

func retryingRead(fd int, buf []byte, positioned bool, offset int64) (int, error) {
	var total int
	for total < len(buf) {
		var n int
		var err error
		if positioned {
			n, err = syscall.Pread(fd, buf[total:], offset+int64(total))
		} else {
			n, err = syscall.Read(fd, buf[total:])
		}
		if n > 0 {
			total += n
		}
		if err == nil && n == 0 {
			break // EOF
		}
		if err == nil {
			continue
		}
		if err == syscall.EINTR || err == syscall.EAGAIN {
			continue
		}
		return total, err
	}
	return total, nil
}

func errnoOf(err error) int32 {
	if errno, ok := err.(syscall.Errno); ok {
		return int32(errno)
	}
	return -1
}

// dispatchPathOpen opens path relative to the guest's sole preopened
// directory. The dirfd param is not threaded through explicitly: under
// GOOS=wasip1, package syscall resolves a path against whichever
// preopen it prefixes, and WASIT only ever preopens one directory
// (§6 "Filesystem").
func dispatchPathOpen(c *call) int32 {
	path := readString(c, 2)
	oflags := readU32(c, 3)

	flags := syscall.O_RDWR
	if oflags&1 != 0 { // O_CREAT bit per preview1 oflags
		flags |= syscall.O_CREAT
	}
	fd, err := syscall.Open(path, flags, 0o644)
	if err != nil {
		return errnoOf(err)
	}
	writeResultHandle(c, 0, uint32(fd))
	return 0
}

func dispatchPrestatDirName(c *call) int32 {
	// The preopen path is fixed to "/" for every guest (§6 Filesystem:
	// "each runtime is given a fresh empty preopen directory as fd 3").
	name := []byte("/")
	writeParamBytes(c, 1, name)
	return 0
}

func writeFdstat(c *call, resultIdx int, st syscall.Stat_t) {
	base := c.results[resultIdx].ptr
	c.mem.WriteU8(base+0, filetypeOf(st))
	c.mem.WriteU16(base+2, 0)
	c.mem.WriteU64(base+8, ^uint64(0))
	c.mem.WriteU64(base+16, ^uint64(0))
}

func writeFilestat(c *call, resultIdx int, st syscall.Stat_t) {
	base := c.results[resultIdx].ptr
	c.mem.WriteU64(base+0, st.Dev)
	c.mem.WriteU64(base+8, st.Ino)
	c.mem.WriteU8(base+16, filetypeOf(st))
	c.mem.WriteU64(base+24, st.Nlink)
	c.mem.WriteU64(base+32, uint64(st.Size))
}

func writePrestat(c *call, resultIdx int, nameLen uint32) {
	base := c.results[resultIdx].ptr
	c.mem.WriteU8(base+0, 0) // tag: dir
	c.mem.WriteU32(base+4, nameLen)
}

// ---- argument extraction helpers ----

func readHandle(c *call, i int) int {
	v, _ := c.mem.ReadU32(c.params[i].ptr)
	return int(v)
}

func readU8(c *call, i int) uint8 {
	v, _ := c.mem.ReadU8(c.params[i].ptr)
	return v
}

func readU32(c *call, i int) uint32 {
	v, _ := c.mem.ReadU32(c.params[i].ptr)
	return v
}

func readU64(c *call, i int) uint64 {
	v, _ := c.mem.ReadU64(c.params[i].ptr)
	return v
}

func readString(c *call, i int) string {
	b, _ := c.mem.Read(c.params[i].ptr, c.params[i].length)
	return string(b)
}

// readIovecBytes reads each iovec's referenced buffer contents, for
// the ciovec (const) array case.
func readIovecBytes(c *call, i int) [][]byte {
	slot := c.params[i]
	out := make([][]byte, slot.length)
	for j := range out {
		elemOff := slot.ptr + uint32(j)*8
		bufPtr, _ := c.mem.ReadU32(elemOff)
		bufLen, _ := c.mem.ReadU32(elemOff + 4)
		out[j], _ = c.mem.Read(bufPtr, bufLen)
	}
	return out
}

// readIovecLens reads each iovec's declared buffer length, for the
// mutable iovec array case (fd_read/fd_pread).
func readIovecLens(c *call, i int) []int {
	slot := c.params[i]
	out := make([]int, slot.length)
	for j := range out {
		elemOff := slot.ptr + uint32(j)*8
		bufLen, _ := c.mem.ReadU32(elemOff + 4)
		out[j] = int(bufLen)
	}
	return out
}

// writeIovecData writes data into the j-th iovec's buffer.
func writeIovecData(c *call, i, j int, data []byte) {
	slot := c.params[i]
	elemOff := slot.ptr + uint32(j)*8
	bufPtr, _ := c.mem.ReadU32(elemOff)
	c.mem.Write(bufPtr, data)
}

func writeParamBytes(c *call, i int, data []byte) {
	c.mem.Write(c.params[i].ptr, data)
}

func writeResultU32(c *call, i int, v uint32)    { c.mem.WriteU32(c.results[i].ptr, v) }
func writeResultU64(c *call, i int, v uint64)    { c.mem.WriteU64(c.results[i].ptr, v) }
func writeResultHandle(c *call, i int, v uint32) { c.mem.WriteU32(c.results[i].ptr, v) }
