package spec

// FuncID is the stable WASI preview1 function ordinal (§6).
type FuncID uint8

const (
	ArgsGet FuncID = iota
	ArgsSizesGet
	EnvironGet
	EnvironSizesGet
	ClockResGet
	ClockTimeGet
	FdAdvise
	FdAllocate
	FdClose
	FdDatasync
	FdFdstatGet
	FdFdstatSetFlags
	FdFdstatSetRights
	FdFilestatGet
	FdFilestatSetSize
	FdFilestatSetTimes
	FdPread
	FdPrestatGet
	FdPrestatDirName
	FdPwrite
	FdRead
	FdReaddir
	FdRenumber
	FdSeek
	FdSync
	FdTell
	FdWrite
	PathCreateDirectory
	PathFilestatGet
	PathFilestatSetTimes
	PathLink
	PathOpen
	PathReadlink
	PathRemoveDirectory
	PathRename
	PathSymlink
	PathUnlinkFile
	PollOneoff
	ProcExit
	ProcRaise
	SchedYield
	RandomGet
	SockAccept
	SockRecv
	SockSend
	SockShutdown
)

var funcIDNames = [...]string{
	"args_get", "args_sizes_get", "environ_get", "environ_sizes_get",
	"clock_res_get", "clock_time_get", "fd_advise", "fd_allocate",
	"fd_close", "fd_datasync", "fd_fdstat_get", "fd_fdstat_set_flags",
	"fd_fdstat_set_rights", "fd_filestat_get", "fd_filestat_set_size",
	"fd_filestat_set_times", "fd_pread", "fd_prestat_get",
	"fd_prestat_dir_name", "fd_pwrite", "fd_read", "fd_readdir",
	"fd_renumber", "fd_seek", "fd_sync", "fd_tell", "fd_write",
	"path_create_directory", "path_filestat_get", "path_filestat_set_times",
	"path_link", "path_open", "path_readlink", "path_remove_directory",
	"path_rename", "path_symlink", "path_unlink_file", "poll_oneoff",
	"proc_exit", "proc_raise", "sched_yield", "random_get", "sock_accept",
	"sock_recv", "sock_send", "sock_shutdown",
}

// NumPreview1Funcs is the fixed size of the preview1 catalog (§6).
const NumPreview1Funcs = 46

func (id FuncID) String() string {
	if int(id) < len(funcIDNames) {
		return funcIDNames[id]
	}
	return "unknown_func"
}

// ParamTagKind discriminates the capability annotations §4.A attaches
// to parameter slots. Tags drive the generator; they are never
// transmitted on the wire.
type ParamTagKind uint8

const (
	TagConsumesResource ParamTagKind = iota
	TagProducesResource
	TagLengthOf
	TagElementsIn
)

// ParamTag is one capability annotation on a parameter slot. Ref is the
// referenced parameter index for TagLengthOf/TagElementsIn; unused
// otherwise.
type ParamTag struct {
	Kind ParamTagKind
	Ref  int
}

// Param is one named, typed, tag-annotated parameter or result slot.
type Param struct {
	Name string
	Type Type
	Tags []ParamTag
}

// FuncSig is one WASI preview1 function: its stable ordinal, parameter
// shape, and result shape.
type FuncSig struct {
	Name    string
	Params  []Param
	Results []Param
	ID      FuncID
}

// HasTag reports whether p carries a tag of the given kind.
func (p Param) HasTag(kind ParamTagKind) bool {
	for _, t := range p.Tags {
		if t.Kind == kind {
			return true
		}
	}
	return false
}

func u(k IntKind) Type               { return Builtin{Int: k} }
func handle(subKind string) Type     { return HandleType{SubKind: subKind} }
func cptr(elem Type) Type            { return ConstPointerType{Elem: elem} }
func ptr(elem Type) Type             { return PointerType{Elem: elem} }
func arr(item Type) Type             { return ArrayType{Item: item, ItemSize: LayoutOf(item).Size} }
func str() Type                      { return StringType{} }
func rec(size uint32, m ...RecordMember) Type { return RecordType{Members: m, Size: size} }
func field(name string, t Type, off uint32) RecordMember {
	return RecordMember{Name: name, Type: t, Offset: off}
}

func in(name string, t Type, tags ...ParamTag) Param  { return Param{Name: name, Type: t, Tags: tags} }
func out(name string, t Type, tags ...ParamTag) Param { return Param{Name: name, Type: t, Tags: tags} }

func consumes() ParamTag       { return ParamTag{Kind: TagConsumesResource} }
func produces() ParamTag       { return ParamTag{Kind: TagProducesResource} }
func lengthOf(ref int) ParamTag   { return ParamTag{Kind: TagLengthOf, Ref: ref} }
func elementsIn(ref int) ParamTag { return ParamTag{Kind: TagElementsIn, Ref: ref} }

var errnoResult = out("errno", u(S32))

// Common WASI preview1 record shapes, simplified to the fields that
// matter for generation and cross-runtime comparison.
var (
	fdstatType = rec(24,
		field("fs_filetype", u(U8), 0),
		field("fs_flags", u(U16), 2),
		field("fs_rights_base", u(U64), 8),
		field("fs_rights_inheriting", u(U64), 16),
	)
	filestatType = rec(64,
		field("dev", u(U64), 0),
		field("ino", u(U64), 8),
		field("filetype", u(U8), 16),
		field("nlink", u(U64), 24),
		field("size", u(U64), 32),
		field("atim", u(U64), 40),
		field("mtim", u(U64), 48),
		field("ctim", u(U64), 56),
	)
	prestatType = VariantType{
		Cases:   []VariantCase{{Name: "dir", Payload: rec(4, field("pr_name_len", u(U32), 0))}},
		TagRepr: U8,
	}
	iovecType = rec(8,
		field("buf", ptr(u(U8)), 0),
		field("buf_len", u(U32), 4),
	)
	ciovecType = rec(8,
		field("buf", cptr(u(U8)), 0),
		field("buf_len", u(U32), 4),
	)
)

func iovecArray() Type  { return arr(iovecType) }
func ciovecArray() Type { return arr(ciovecType) }

// Preview1Funcs returns the fixed catalog of all 46 WASI preview1
// functions by stable ordinal, exactly as enumerated in §6.
func Preview1Funcs() []FuncSig {
	return []FuncSig{
		{ID: ArgsGet, Name: "args_get", Params: []Param{
			in("argv", ptr(arr(ptr(u(U8)))), produces()),
			in("argv_buf", ptr(u(U8)), produces()),
		}, Results: []Param{errnoResult}},

		{ID: ArgsSizesGet, Name: "args_sizes_get", Results: []Param{
			errnoResult,
			out("argc", u(U32)),
			out("argv_buf_size", u(U32)),
		}},

		{ID: EnvironGet, Name: "environ_get", Params: []Param{
			in("environ", ptr(arr(ptr(u(U8)))), produces()),
			in("environ_buf", ptr(u(U8)), produces()),
		}, Results: []Param{errnoResult}},

		{ID: EnvironSizesGet, Name: "environ_sizes_get", Results: []Param{
			errnoResult,
			out("environc", u(U32)),
			out("environ_buf_size", u(U32)),
		}},

		{ID: ClockResGet, Name: "clock_res_get", Params: []Param{
			in("id", u(U32)),
		}, Results: []Param{errnoResult, out("resolution", u(U64))}},

		{ID: ClockTimeGet, Name: "clock_time_get", Params: []Param{
			in("id", u(U32)),
			in("precision", u(U64)),
		}, Results: []Param{errnoResult, out("time", u(U64))}},

		{ID: FdAdvise, Name: "fd_advise", Params: []Param{
			in("fd", handle(""), consumes()),
			in("offset", u(U64)),
			in("len", u(U64)),
			in("advice", u(U8)),
		}, Results: []Param{errnoResult}},

		{ID: FdAllocate, Name: "fd_allocate", Params: []Param{
			in("fd", handle(""), consumes()),
			in("offset", u(U64)),
			in("len", u(U64)),
		}, Results: []Param{errnoResult}},

		{ID: FdClose, Name: "fd_close", Params: []Param{
			in("fd", handle(""), consumes()),
		}, Results: []Param{errnoResult}},

		{ID: FdDatasync, Name: "fd_datasync", Params: []Param{
			in("fd", handle(""), consumes()),
		}, Results: []Param{errnoResult}},

		{ID: FdFdstatGet, Name: "fd_fdstat_get", Params: []Param{
			in("fd", handle(""), consumes()),
		}, Results: []Param{errnoResult, out("stat", fdstatType, produces())}},

		{ID: FdFdstatSetFlags, Name: "fd_fdstat_set_flags", Params: []Param{
			in("fd", handle(""), consumes()),
			in("flags", u(U16)),
		}, Results: []Param{errnoResult}},

		{ID: FdFdstatSetRights, Name: "fd_fdstat_set_rights", Params: []Param{
			in("fd", handle(""), consumes()),
			in("fs_rights_base", u(U64)),
			in("fs_rights_inheriting", u(U64)),
		}, Results: []Param{errnoResult}},

		{ID: FdFilestatGet, Name: "fd_filestat_get", Params: []Param{
			in("fd", handle(""), consumes()),
		}, Results: []Param{errnoResult, out("stat", filestatType, produces())}},

		{ID: FdFilestatSetSize, Name: "fd_filestat_set_size", Params: []Param{
			in("fd", handle(""), consumes()),
			in("size", u(U64)),
		}, Results: []Param{errnoResult}},

		{ID: FdFilestatSetTimes, Name: "fd_filestat_set_times", Params: []Param{
			in("fd", handle(""), consumes()),
			in("atim", u(U64)),
			in("mtim", u(U64)),
			in("fst_flags", u(U16)),
		}, Results: []Param{errnoResult}},

		{ID: FdPread, Name: "fd_pread", Params: []Param{
			in("fd", handle(""), consumes()),
			in("iovs", iovecArray(), elementsIn(2)),
			in("iovs_len", u(U32), lengthOf(1)),
			in("offset", u(U64)),
		}, Results: []Param{errnoResult, out("nread", u(U32))}},

		{ID: FdPrestatGet, Name: "fd_prestat_get", Params: []Param{
			in("fd", handle(""), consumes()),
		}, Results: []Param{errnoResult, out("prestat", prestatType, produces())}},

		{ID: FdPrestatDirName, Name: "fd_prestat_dir_name", Params: []Param{
			in("fd", handle(""), consumes()),
			in("path", ptr(u(U8)), produces(), elementsIn(2)),
			in("path_len", u(U32), lengthOf(1)),
		}, Results: []Param{errnoResult}},

		{ID: FdPwrite, Name: "fd_pwrite", Params: []Param{
			in("fd", handle(""), consumes()),
			in("iovs", ciovecArray(), elementsIn(2)),
			in("iovs_len", u(U32), lengthOf(1)),
			in("offset", u(U64)),
		}, Results: []Param{errnoResult, out("nwritten", u(U32))}},

		{ID: FdRead, Name: "fd_read", Params: []Param{
			in("fd", handle(""), consumes()),
			in("iovs", iovecArray(), elementsIn(2)),
			in("iovs_len", u(U32), lengthOf(1)),
		}, Results: []Param{errnoResult, out("nread", u(U32))}},

		{ID: FdReaddir, Name: "fd_readdir", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("buf", ptr(arr(u(U8))), elementsIn(2)),
			in("buf_len", u(U32), lengthOf(1)),
			in("cookie", u(U64)),
		}, Results: []Param{errnoResult, out("bufused", u(U32))}},

		{ID: FdRenumber, Name: "fd_renumber", Params: []Param{
			in("fd", handle(""), consumes()),
			in("to", handle(""), consumes()),
		}, Results: []Param{errnoResult}},

		{ID: FdSeek, Name: "fd_seek", Params: []Param{
			in("fd", handle(""), consumes()),
			in("offset", u(S64)),
			in("whence", u(U8)),
		}, Results: []Param{errnoResult, out("newoffset", u(U64))}},

		{ID: FdSync, Name: "fd_sync", Params: []Param{
			in("fd", handle(""), consumes()),
		}, Results: []Param{errnoResult}},

		{ID: FdTell, Name: "fd_tell", Params: []Param{
			in("fd", handle(""), consumes()),
		}, Results: []Param{errnoResult, out("offset", u(U64))}},

		{ID: FdWrite, Name: "fd_write", Params: []Param{
			in("fd", handle(""), consumes()),
			in("iovs", ciovecArray(), elementsIn(2)),
			in("iovs_len", u(U32), lengthOf(1)),
		}, Results: []Param{errnoResult, out("nwritten", u(U32))}},

		{ID: PathCreateDirectory, Name: "path_create_directory", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("path", str()),
		}, Results: []Param{errnoResult}},

		{ID: PathFilestatGet, Name: "path_filestat_get", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("flags", u(U32)),
			in("path", str()),
		}, Results: []Param{errnoResult, out("stat", filestatType, produces())}},

		{ID: PathFilestatSetTimes, Name: "path_filestat_set_times", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("flags", u(U32)),
			in("path", str()),
			in("atim", u(U64)),
			in("mtim", u(U64)),
			in("fst_flags", u(U16)),
		}, Results: []Param{errnoResult}},

		{ID: PathLink, Name: "path_link", Params: []Param{
			in("old_fd", handle("dir"), consumes()),
			in("old_flags", u(U32)),
			in("old_path", str()),
			in("new_fd", handle("dir"), consumes()),
			in("new_path", str()),
		}, Results: []Param{errnoResult}},

		{ID: PathOpen, Name: "path_open", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("dirflags", u(U32)),
			in("path", str()),
			in("oflags", u(U32)),
			in("fs_rights_base", u(U64)),
			in("fs_rights_inheriting", u(U64)),
			in("fdflags", u(U16)),
		}, Results: []Param{errnoResult, out("fd", handle(""), produces())}},

		{ID: PathReadlink, Name: "path_readlink", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("path", str()),
			in("buf", ptr(arr(u(U8))), elementsIn(3)),
			in("buf_len", u(U32), lengthOf(2)),
		}, Results: []Param{errnoResult, out("bufused", u(U32))}},

		{ID: PathRemoveDirectory, Name: "path_remove_directory", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("path", str()),
		}, Results: []Param{errnoResult}},

		{ID: PathRename, Name: "path_rename", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("old_path", str()),
			in("new_fd", handle("dir"), consumes()),
			in("new_path", str()),
		}, Results: []Param{errnoResult}},

		{ID: PathSymlink, Name: "path_symlink", Params: []Param{
			in("old_path", str()),
			in("fd", handle("dir"), consumes()),
			in("new_path", str()),
		}, Results: []Param{errnoResult}},

		{ID: PathUnlinkFile, Name: "path_unlink_file", Params: []Param{
			in("fd", handle("dir"), consumes()),
			in("path", str()),
		}, Results: []Param{errnoResult}},

		{ID: PollOneoff, Name: "poll_oneoff", Params: []Param{
			in("in", cptr(arr(u(U64))), elementsIn(2)),
			in("out", ptr(arr(u(U64))), elementsIn(2)),
			in("nsubscriptions", u(U32), lengthOf(0)),
		}, Results: []Param{errnoResult, out("nevents", u(U32))}},

		{ID: ProcExit, Name: "proc_exit", Params: []Param{
			in("code", u(U32)),
		}},

		{ID: ProcRaise, Name: "proc_raise", Params: []Param{
			in("sig", u(U8)),
		}, Results: []Param{errnoResult}},

		{ID: SchedYield, Name: "sched_yield", Results: []Param{errnoResult}},

		{ID: RandomGet, Name: "random_get", Params: []Param{
			in("buf", ptr(arr(u(U8))), elementsIn(1)),
			in("buf_len", u(U32), lengthOf(0)),
		}, Results: []Param{errnoResult}},

		{ID: SockAccept, Name: "sock_accept", Params: []Param{
			in("fd", handle(""), consumes()),
			in("flags", u(U16)),
		}, Results: []Param{errnoResult, out("fd", handle(""), produces())}},

		{ID: SockRecv, Name: "sock_recv", Params: []Param{
			in("fd", handle(""), consumes()),
			in("ri_data", ptr(iovecArray()), elementsIn(2)),
			in("ri_data_len", u(U32), lengthOf(1)),
			in("ri_flags", u(U16)),
		}, Results: []Param{errnoResult, out("ro_datalen", u(U32)), out("ro_flags", u(U16))}},

		{ID: SockSend, Name: "sock_send", Params: []Param{
			in("fd", handle(""), consumes()),
			in("si_data", cptr(ciovecArray()), elementsIn(2)),
			in("si_data_len", u(U32), lengthOf(1)),
			in("si_flags", u(U16)),
		}, Results: []Param{errnoResult, out("so_datalen", u(U32))}},

		{ID: SockShutdown, Name: "sock_shutdown", Params: []Param{
			in("fd", handle(""), consumes()),
			in("how", u(U8)),
		}, Results: []Param{errnoResult}},
	}
}

var (
	funcsByID   map[FuncID]FuncSig
	funcsByName map[string]FuncSig
)

func init() {
	funcs := Preview1Funcs()
	funcsByID = make(map[FuncID]FuncSig, len(funcs))
	funcsByName = make(map[string]FuncSig, len(funcs))
	for _, f := range funcs {
		funcsByID[f.ID] = f
		funcsByName[f.Name] = f
	}
}

// FuncByID looks up a FuncSig by its stable ordinal.
func FuncByID(id FuncID) (FuncSig, bool) {
	f, ok := funcsByID[id]
	return f, ok
}

// FuncByName looks up a FuncSig by its preview1 name.
func FuncByName(name string) (FuncSig, bool) {
	f, ok := funcsByName[name]
	return f, ok
}
