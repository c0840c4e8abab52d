package program

import (
	"context"
	"testing"

	"github.com/wasit-fuzz/wasit/gen"
	"github.com/wasit-fuzz/wasit/resource"
	"github.com/wasit-fuzz/wasit/spec"
)

func newTestSynth(seed uint64) *Synthesizer {
	store := resource.New()
	g := gen.New(store, gen.DefaultControls(seed))
	return New(store, g, 100)
}

func TestStepBootstrapsWhenNothingRunnable(t *testing.T) {
	s := newTestSynth(1)
	// Limit the catalog to fd_close, whose only parameter consumes a
	// resource, so an empty store leaves nothing runnable.
	fdClose, _ := spec.FuncByID(spec.FdClose)
	s.funcs = []spec.FuncSig{fdClose}
	req, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	decl, ok := req.(DeclRequest)
	if !ok {
		t.Fatalf("got %T, want DeclRequest", req)
	}
	if decl.ResourceID != BaseDirID {
		t.Fatalf("got resource id %d, want %d", decl.ResourceID, BaseDirID)
	}
}

func TestStepPicksCallOnceResourceIsLive(t *testing.T) {
	s := newTestSynth(2)
	fdClose, _ := spec.FuncByID(spec.FdClose)
	s.funcs = []spec.FuncSig{fdClose}
	if _, err := s.Step(); err != nil {
		t.Fatalf("first Step: %v", err)
	}
	// Simulate the executor having actually installed the bootstrap
	// resource before the next Step is requested.
	if err := s.store.Decl(BaseDirID, spec.HandleType{SubKind: BaseDirSubKind}, []byte{3, 0, 0, 0}); err != nil {
		t.Fatalf("Decl: %v", err)
	}

	// Now a runnable func exists (any consumes("") handle func), so the
	// second Step should pick a real call, not re-bootstrap.
	req, err := s.Step()
	if err != nil {
		t.Fatalf("second Step: %v", err)
	}
	if _, ok := req.(CallRequest); !ok {
		t.Fatalf("got %T, want CallRequest once a resource is live", req)
	}
}

func TestBuildCallAssignsFreshResultIDs(t *testing.T) {
	s := newTestSynth(3)
	if err := s.store.Decl(3, spec.HandleType{SubKind: BaseDirSubKind}, []byte{3, 0, 0, 0}); err != nil {
		t.Fatalf("Decl: %v", err)
	}

	sig, ok := spec.FuncByName("path_open")
	if !ok {
		t.Fatal("path_open not found in catalog")
	}
	req, err := s.buildCall(sig)
	if err != nil {
		t.Fatalf("buildCall: %v", err)
	}
	call := req.(CallRequest)
	var sawResource bool
	for _, r := range call.Results {
		if rr, ok := r.(spec.ResourceResult); ok {
			sawResource = true
			if rr.ID < 100 {
				t.Fatalf("result id %d collides with reserved range", rr.ID)
			}
		}
	}
	if !sawResource {
		t.Fatal("path_open should produce a fresh fd resource")
	}
}

func TestReconcileLengthsMatchesArrayLen(t *testing.T) {
	s := newTestSynth(4)
	if err := s.store.Decl(3, spec.HandleType{SubKind: ""}, []byte{3, 0, 0, 0}); err != nil {
		t.Fatalf("Decl: %v", err)
	}

	sig, ok := spec.FuncByName("fd_read")
	if !ok {
		t.Fatal("fd_read not found in catalog")
	}
	req, err := s.buildCall(sig)
	if err != nil {
		t.Fatalf("buildCall: %v", err)
	}
	call := req.(CallRequest)

	var iovsLen int
	var lengthParam uint64
	for _, cp := range call.Params {
		if cp.Param.Name == "iovs" {
			iovsLen = len(cp.Value.(spec.RawValue).Body.(spec.ArrayValue).Items)
		}
		if cp.Param.Name == "iovs_len" {
			lengthParam = cp.Value.(spec.RawValue).Body.(spec.BuiltinValue).Unsigned
		}
	}
	if uint64(iovsLen) != lengthParam {
		t.Fatalf("iovs_len %d does not match iovs array length %d", lengthParam, iovsLen)
	}
}

func TestRunBoundedByCount(t *testing.T) {
	s := newTestSynth(5)
	prog, err := Run(context.Background(), s, 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(prog.Requests) != 5 {
		t.Fatalf("got %d requests, want 5", len(prog.Requests))
	}
}

func TestRunBoundedByDeadline(t *testing.T) {
	s := newTestSynth(6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prog, err := Run(ctx, s, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(prog.Requests) != 0 {
		t.Fatalf("got %d requests after cancel, want 0", len(prog.Requests))
	}
}
