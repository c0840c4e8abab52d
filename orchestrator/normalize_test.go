package orchestrator

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/wasit-fuzz/wasit/spec"
	"github.com/wasit-fuzz/wasit/wire"
)

func TestNormalizeErrnoCoalescesEintrAndEagain(t *testing.T) {
	if got := NormalizeErrno(int32(unix.EINTR)); got != int32(unix.EAGAIN) {
		t.Fatalf("NormalizeErrno(EINTR) = %d, want %d", got, unix.EAGAIN)
	}
	if got := NormalizeErrno(int32(unix.EAGAIN)); got != int32(unix.EAGAIN) {
		t.Fatalf("NormalizeErrno(EAGAIN) = %d, want %d", got, unix.EAGAIN)
	}
}

func TestNormalizeErrnoKeepsEinvalAndEnotsupDistinct(t *testing.T) {
	if NormalizeErrno(int32(unix.EINVAL)) == NormalizeErrno(int32(unix.ENOTSUP)) {
		t.Fatal("EINVAL and ENOTSUP must not be coalesced")
	}
}

func TestNormalizeIgnoresMemoryOffset(t *testing.T) {
	a := wire.PureList{Items: []wire.ValueView{{MemoryOffset: 10, Content: wire.PureBuiltin{Int: spec.U8, Unsigned: 5}}}}
	b := wire.PureList{Items: []wire.ValueView{{MemoryOffset: 9000, Content: wire.PureBuiltin{Int: spec.U8, Unsigned: 5}}}}

	if !Equal(Normalize(a), Normalize(b)) {
		t.Fatal("values differing only in MemoryOffset should be equal after Normalize")
	}
}

func TestNormalizeDetectsRealContentDifference(t *testing.T) {
	a := wire.PureBuiltin{Int: spec.U8, Unsigned: 5}
	b := wire.PureBuiltin{Int: spec.U8, Unsigned: 6}

	if Equal(Normalize(a), Normalize(b)) {
		t.Fatal("differing content must not be equal")
	}
}

func TestFlattenBytesRecord(t *testing.T) {
	rec := wire.PureRecord{Fields: []wire.NamedView{
		{Name: "a", View: wire.ValueView{Content: wire.PureHandle{Value: 7}}},
		{Name: "b", View: wire.ValueView{Content: wire.PureBuiltin{Int: spec.U8, Unsigned: 1}}},
	}}
	got := flattenBytes(rec)
	if len(got) != 5 {
		t.Fatalf("len(got) = %d, want 5", len(got))
	}
	if got[0] != 7 {
		t.Fatalf("first byte = %d, want 7", got[0])
	}
}
