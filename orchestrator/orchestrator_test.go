package orchestrator

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/program"
	"github.com/wasit-fuzz/wasit/resource"
	"github.com/wasit-fuzz/wasit/spec"
	"github.com/wasit-fuzz/wasit/wire"
)

// fakeChild replays a fixed sequence of responses, one per Send call,
// so orchestrator logic can be tested without real processes or wasm.
type fakeChild struct {
	name      string
	responses []wire.Response
	errs      []error
	calls     int
	killed    bool
}

func (f *fakeChild) Name() string { return f.name }

func (f *fakeChild) Send(ctx context.Context, req wire.Request) (wire.Response, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.responses[i], nil
}

func (f *fakeChild) Kill() error        { f.killed = true; return nil }
func (f *fakeChild) StderrTail() string { return "" }

func TestRunProgramAgreementInstallsResource(t *testing.T) {
	pathOpenSig, ok := spec.FuncByID(spec.PathOpen)
	if !ok {
		t.Fatal("path_open not registered")
	}

	resp := wire.CallResponse{
		Errno:       0,
		ParamViews:  []wire.ValueView{{MemoryOffset: 100, Content: wire.PureHandle{Value: 3}}},
		ResultViews: []wire.ValueView{{MemoryOffset: 200, Content: wire.PureHandle{Value: 4}}},
	}
	// Second child sees the same content at a different offset: must
	// still agree once Normalize strips MemoryOffset.
	resp2 := resp
	resp2.ParamViews = []wire.ValueView{{MemoryOffset: 900, Content: wire.PureHandle{Value: 3}}}
	resp2.ResultViews = []wire.ValueView{{MemoryOffset: 950, Content: wire.PureHandle{Value: 4}}}

	a := &fakeChild{name: "a", responses: []wire.Response{resp}}
	b := &fakeChild{name: "b", responses: []wire.Response{resp2}}

	store := resource.New()
	orch := New([]Child{a, b}, store, time.Second)

	prog := &program.Program{Requests: []program.Request{
		program.CallRequest{
			Func:    pathOpenSig,
			Params:  nil,
			Results: []spec.ResultSpec{spec.ResourceResult{Type: spec.HandleType{}, ID: 42}},
		},
	}}

	outcomes, err := orch.RunProgram(context.Background(), prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	if outcomes[0].Diverged {
		t.Fatal("expected agreement, got divergence")
	}
	if !store.Has(42) {
		t.Fatal("expected resource 42 to be installed")
	}
	typ, bytes, err := store.Get(42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := typ.(spec.HandleType); !ok {
		t.Fatalf("installed type = %T, want HandleType", typ)
	}
	if len(bytes) != 4 {
		t.Fatalf("installed bytes len = %d, want 4", len(bytes))
	}
}

func TestRunProgramDetectsDivergence(t *testing.T) {
	pathOpenSig, _ := spec.FuncByID(spec.PathOpen)

	respA := wire.CallResponse{Errno: 0}
	respB := wire.CallResponse{Errno: int32(unix.EACCES)}

	a := &fakeChild{name: "a", responses: []wire.Response{respA}}
	b := &fakeChild{name: "b", responses: []wire.Response{respB}}

	store := resource.New()
	orch := New([]Child{a, b}, store, time.Second)

	prog := &program.Program{Requests: []program.Request{
		program.CallRequest{Func: pathOpenSig},
	}}

	outcomes, err := orch.RunProgram(context.Background(), prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if !outcomes[0].Diverged {
		t.Fatal("expected divergence on differing errno")
	}
}

func TestRunProgramTimeoutCountsAsOutcome(t *testing.T) {
	pathOpenSig, _ := spec.FuncByID(spec.PathOpen)

	timeoutErr := errs.New(errs.PhaseOrchestrate, errs.KindTimeout).Detail("no response").Build()
	a := &fakeChild{name: "a", errs: []error{timeoutErr}}
	b := &fakeChild{name: "b", responses: []wire.Response{wire.CallResponse{Errno: 0}}}

	store := resource.New()
	orch := New([]Child{a, b}, store, time.Second)

	prog := &program.Program{Requests: []program.Request{
		program.CallRequest{Func: pathOpenSig},
	}}

	outcomes, err := orch.RunProgram(context.Background(), prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if outcomes[0].Outcomes["a"].Kind != OutcomeTimeout {
		t.Fatalf("child a outcome = %v, want OutcomeTimeout", outcomes[0].Outcomes["a"].Kind)
	}
	if !outcomes[0].Diverged {
		t.Fatal("a timeout vs b success should count as divergence")
	}
}

func TestRandomGetSkipsContentComparison(t *testing.T) {
	sig, ok := spec.FuncByID(spec.RandomGet)
	if !ok {
		t.Fatal("random_get not registered")
	}

	respA := wire.CallResponse{Errno: 0, ParamViews: []wire.ValueView{{Content: wire.PureBuiltin{Unsigned: 1}}}}
	respB := wire.CallResponse{Errno: 0, ParamViews: []wire.ValueView{{Content: wire.PureBuiltin{Unsigned: 2}}}}

	a := &fakeChild{name: "a", responses: []wire.Response{respA}}
	b := &fakeChild{name: "b", responses: []wire.Response{respB}}

	store := resource.New()
	orch := New([]Child{a, b}, store, time.Second)

	prog := &program.Program{Requests: []program.Request{
		program.CallRequest{Func: sig},
	}}

	outcomes, err := orch.RunProgram(context.Background(), prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if outcomes[0].Diverged {
		t.Fatal("random_get content differences must not count as divergence")
	}
}
