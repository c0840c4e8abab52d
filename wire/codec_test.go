package wire

import (
	"bytes"
	"testing"

	"github.com/wasit-fuzz/wasit/spec"
)

func TestFrameRoundTrip(t *testing.T) {
	bodies := [][]byte{
		{},
		{1, 2, 3},
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, body := range bodies {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, body); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, body) {
			t.Fatalf("round-trip mismatch: got %v, want %v", got, body)
		}
	}
}

func TestFrameLengthPrefixIsLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	prefix := buf.Bytes()[:8]
	want := []byte{5, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(prefix, want) {
		t.Fatalf("got prefix %v, want %v", prefix, want)
	}
}

func TestDeclRequestRoundTrip(t *testing.T) {
	req := DeclRequest{ResourceID: 3, Value: spec.HandleValue{Value: 3}}
	body := EncodeRequest(req)
	got, err := DecodeRequest(body)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	gd, ok := got.(DeclRequest)
	if !ok {
		t.Fatalf("got %T, want DeclRequest", got)
	}
	if gd != req {
		t.Fatalf("got %+v, want %+v", gd, req)
	}
}

func TestCallRequestRoundTrip(t *testing.T) {
	req := CallRequest{
		Func: spec.FdWrite,
		Params: []spec.ValueSpec{
			spec.ResourceRef{ID: 1},
			spec.RawValue{
				Type: spec.ArrayType{Item: spec.Builtin{Int: spec.U8}, ItemSize: 1},
				Body: spec.ArrayValue{Items: []spec.ValueSpec{
					spec.RawValue{Type: spec.Builtin{Int: spec.U8}, Body: spec.BuiltinValue{Int: spec.U8, Unsigned: 104}},
					spec.RawValue{Type: spec.Builtin{Int: spec.U8}, Body: spec.BuiltinValue{Int: spec.U8, Unsigned: 105}},
				}},
			},
			spec.RawValue{Type: spec.StringType{}, Body: spec.StringValue{Bytes: []byte("hi")}},
		},
		Results: []spec.ResultSpec{
			spec.IgnoreResult{Type: spec.Builtin{Int: spec.S32}},
			spec.ResourceResult{Type: spec.HandleType{SubKind: ""}, ID: 42},
		},
	}
	body := EncodeRequest(req)
	got, err := DecodeRequest(body)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	call, ok := got.(CallRequest)
	if !ok {
		t.Fatalf("got %T, want CallRequest", got)
	}
	if call.Func != req.Func {
		t.Fatalf("got func %v, want %v", call.Func, req.Func)
	}
	if len(call.Params) != len(req.Params) || len(call.Results) != len(req.Results) {
		t.Fatalf("length mismatch: params %d/%d results %d/%d",
			len(call.Params), len(req.Params), len(call.Results), len(req.Results))
	}

	sv, ok := call.Params[2].(spec.RawValue).Body.(spec.StringValue)
	if !ok || string(sv.Bytes) != "hi" {
		t.Fatalf("string param did not round-trip: %+v", call.Params[2])
	}

	rr, ok := call.Results[1].(spec.ResourceResult)
	if !ok || rr.ID != 42 {
		t.Fatalf("resource result did not round-trip: %+v", call.Results[1])
	}
}

func TestCallResponseRoundTrip(t *testing.T) {
	resp := CallResponse{
		Errno: -1,
		ParamViews: []ValueView{
			{MemoryOffset: 1024, Content: PureBuiltin{Int: spec.U32, Unsigned: 7}},
			{MemoryOffset: 2048, Content: PureList{Items: []ValueView{
				{MemoryOffset: 2048, Content: PureBuiltin{Int: spec.U8, Unsigned: 1}},
				{MemoryOffset: 2049, Content: PureBuiltin{Int: spec.U8, Unsigned: 2}},
			}}},
		},
		ResultViews: []ValueView{
			{MemoryOffset: 4096, Content: PureHandle{Value: 9}},
			{MemoryOffset: 8192, Content: PureRecord{Fields: []NamedView{
				{Name: "size", View: ValueView{MemoryOffset: 8192, Content: PureBuiltin{Int: spec.U64, Unsigned: 128}}},
			}}},
		},
	}
	body := EncodeResponse(resp)
	got, err := DecodeResponse(body)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	call, ok := got.(CallResponse)
	if !ok {
		t.Fatalf("got %T, want CallResponse", got)
	}
	if call.Errno != resp.Errno {
		t.Fatalf("got errno %d, want %d", call.Errno, resp.Errno)
	}
	list, ok := call.ParamViews[1].Content.(PureList)
	if !ok || len(list.Items) != 2 {
		t.Fatalf("list param did not round-trip: %+v", call.ParamViews[1])
	}
	rec, ok := call.ResultViews[1].Content.(PureRecord)
	if !ok || len(rec.Fields) != 1 || rec.Fields[0].Name != "size" {
		t.Fatalf("record result did not round-trip: %+v", call.ResultViews[1])
	}
}

func TestDeclResponseRoundTrip(t *testing.T) {
	body := EncodeResponse(DeclResponse{})
	got, err := DecodeResponse(body)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if _, ok := got.(DeclResponse); !ok {
		t.Fatalf("got %T, want DeclResponse", got)
	}
}

func TestVariantValueRoundTrip(t *testing.T) {
	v := spec.RawValue{
		Type: spec.VariantType{
			Cases: []spec.VariantCase{
				{Name: "ok", Payload: spec.Builtin{Int: spec.U32}},
				{Name: "err", Payload: nil},
			},
			TagRepr: spec.U8,
		},
		Body: spec.VariantValue{
			CaseIdx: 0,
			Payload: spec.RawValue{Type: spec.Builtin{Int: spec.U32}, Body: spec.BuiltinValue{Int: spec.U32, Unsigned: 77}},
		},
	}
	w := &writer{}
	encodeValueSpec(w, v)
	r := newReader(w.buf)
	got, err := decodeValueSpec(r)
	if err != nil {
		t.Fatalf("decodeValueSpec: %v", err)
	}
	vv := got.(spec.RawValue).Body.(spec.VariantValue)
	if vv.CaseIdx != 0 {
		t.Fatalf("got case %d, want 0", vv.CaseIdx)
	}
	bv := vv.Payload.(spec.RawValue).Body.(spec.BuiltinValue)
	if bv.Unsigned != 77 {
		t.Fatalf("got payload %d, want 77", bv.Unsigned)
	}
}
