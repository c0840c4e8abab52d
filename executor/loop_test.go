package executor

import (
	"bytes"
	"testing"

	"github.com/wasit-fuzz/wasit/spec"
	"github.com/wasit-fuzz/wasit/wire"
)

func writeReq(t *testing.T, buf *bytes.Buffer, req wire.Request) {
	t.Helper()
	if err := wire.WriteFrame(buf, wire.EncodeRequest(req)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
}

func readResp(t *testing.T, r *bytes.Reader) wire.Response {
	t.Helper()
	body, err := wire.ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	resp, err := wire.DecodeResponse(body)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	return resp
}

func TestRunDeclThenCall(t *testing.T) {
	in := new(bytes.Buffer)
	writeReq(t, in, wire.DeclRequest{ResourceID: 1, Value: spec.HandleValue{Value: 3}})

	sig, ok := spec.FuncByID(spec.FdClose)
	if !ok {
		t.Fatal("fd_close not registered")
	}
	writeReq(t, in, wire.CallRequest{
		Func:    spec.FdClose,
		Params:  []spec.ValueSpec{spec.ResourceRef{ID: 1}},
		Results: []spec.ResultSpec{spec.IgnoreResult{Type: sig.Results[0].Type}},
	})

	out := new(bytes.Buffer)
	if err := Run(in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := bytes.NewReader(out.Bytes())
	declResp := readResp(t, r)
	if _, ok := declResp.(wire.DeclResponse); !ok {
		t.Fatalf("first response = %T, want DeclResponse", declResp)
	}

	callResp := readResp(t, r)
	cr, ok := callResp.(wire.CallResponse)
	if !ok {
		t.Fatalf("second response = %T, want CallResponse", callResp)
	}
	if len(cr.ParamViews) != 1 {
		t.Fatalf("ParamViews len = %d, want 1", len(cr.ParamViews))
	}
	if _, ok := cr.ParamViews[0].Content.(wire.PureHandle); !ok {
		t.Fatalf("fd param view = %T, want PureHandle", cr.ParamViews[0].Content)
	}

	if _, err := wire.ReadFrame(r); err == nil {
		t.Fatal("expected no further frames")
	}
}

func TestRunStopsOnProcExit(t *testing.T) {
	in := new(bytes.Buffer)
	if _, ok := spec.FuncByID(spec.ProcExit); !ok {
		t.Fatal("proc_exit not registered")
	}
	// proc_exit declares no results, so the request carries none.
	writeReq(t, in, wire.CallRequest{
		Func:   spec.ProcExit,
		Params: []spec.ValueSpec{spec.RawValue{Type: spec.Builtin{Int: spec.U32}, Body: spec.BuiltinValue{Int: spec.U32, Unsigned: 1}}},
	})
	// A trailing frame that must never be read, since proc_exit ends the loop.
	writeReq(t, in, wire.DeclRequest{ResourceID: 99, Value: spec.HandleValue{Value: 7}})

	out := new(bytes.Buffer)
	if err := Run(in, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := bytes.NewReader(out.Bytes())
	resp := readResp(t, r)
	if _, ok := resp.(wire.CallResponse); !ok {
		t.Fatalf("response = %T, want CallResponse", resp)
	}
	if _, err := wire.ReadFrame(r); err == nil {
		t.Fatal("expected exactly one response frame before exit")
	}
}

func TestReadPureValueBuiltinRoundTrip(t *testing.T) {
	mem := NewLinearMemory(64)
	if err := mem.WriteU32(0, 42); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	pv := readPureValue(mem, spec.Builtin{Int: spec.U32}, 0, 0)
	b, ok := pv.(wire.PureBuiltin)
	if !ok {
		t.Fatalf("got %T, want PureBuiltin", pv)
	}
	if b.Unsigned != 42 {
		t.Fatalf("Unsigned = %d, want 42", b.Unsigned)
	}
}

func TestReadPureValueStringRoundTrip(t *testing.T) {
	mem := NewLinearMemory(64)
	if err := mem.Write(0, []byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pv := readPureValue(mem, spec.StringType{}, 0, 2)
	list, ok := pv.(wire.PureList)
	if !ok {
		t.Fatalf("got %T, want PureList", pv)
	}
	if len(list.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(list.Items))
	}
	got := []byte{
		byte(list.Items[0].Content.(wire.PureBuiltin).Unsigned),
		byte(list.Items[1].Content.(wire.PureBuiltin).Unsigned),
	}
	if string(got) != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}
