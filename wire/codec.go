package wire

import (
	"encoding/binary"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/spec"
)

// writer accumulates a tagged-union encoded message body.
type writer struct {
	buf []byte
}

func (w *writer) u8(b byte) { w.buf = append(w.buf, b) }

func (w *writer) boolean(b bool) {
	if b {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}
func (w *writer) rawBytes(b []byte) {
	w.uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}
func (w *writer) str(s string) { w.rawBytes([]byte(s)) }

// reader consumes a tagged-union encoded message body.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) u8() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errs.New(errs.PhaseWire, errs.KindProtocol).Detail("unexpected end of message reading a byte").Build()
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) boolean() (bool, error) {
	b, err := r.u8()
	return b != 0, err
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, errs.New(errs.PhaseWire, errs.KindProtocol).Detail("malformed varint").Build()
	}
	r.pos += n
	return v, nil
}

func (r *reader) rawBytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if uint64(r.pos)+n > uint64(len(r.buf)) {
		return nil, errs.New(errs.PhaseWire, errs.KindProtocol).Detail("length-prefixed field runs past message end").Build()
	}
	out := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

func (r *reader) str() (string, error) {
	b, err := r.rawBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ---- spec.Type ----

func encodeType(w *writer, t spec.Type) {
	w.u8(byte(t.Kind()))
	switch tt := t.(type) {
	case spec.Builtin:
		w.u8(byte(tt.Int))
	case spec.StringType:
	case spec.BitflagsType:
		w.u8(byte(tt.Repr))
		w.uvarint(uint64(len(tt.Members)))
		for _, m := range tt.Members {
			w.str(m)
		}
	case spec.HandleType:
		w.str(tt.SubKind)
	case spec.ArrayType:
		w.uvarint(uint64(tt.ItemSize))
		encodeType(w, tt.Item)
	case spec.RecordType:
		w.uvarint(uint64(tt.Size))
		w.uvarint(uint64(len(tt.Members)))
		for _, m := range tt.Members {
			w.str(m.Name)
			w.uvarint(uint64(m.Offset))
			encodeType(w, m.Type)
		}
	case spec.ConstPointerType:
		encodeType(w, tt.Elem)
	case spec.PointerType:
		encodeType(w, tt.Elem)
	case spec.VariantType:
		w.u8(byte(tt.TagRepr))
		w.uvarint(uint64(tt.PayloadOffset))
		w.uvarint(uint64(tt.Size))
		w.uvarint(uint64(len(tt.Cases)))
		for _, c := range tt.Cases {
			w.str(c.Name)
			w.boolean(c.Payload != nil)
			if c.Payload != nil {
				encodeType(w, c.Payload)
			}
		}
	default:
		panic("wire: unreachable Type kind in encodeType")
	}
}

func decodeType(r *reader) (spec.Type, error) {
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	kind := spec.TypeKind(kindByte)

	switch kind {
	case spec.KindBuiltin:
		ik, err := r.u8()
		if err != nil {
			return nil, err
		}
		return spec.Builtin{Int: spec.IntKind(ik)}, nil

	case spec.KindString:
		return spec.StringType{}, nil

	case spec.KindBitflags:
		repr, err := r.u8()
		if err != nil {
			return nil, err
		}
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		members := make([]string, n)
		for i := range members {
			members[i], err = r.str()
			if err != nil {
				return nil, err
			}
		}
		return spec.BitflagsType{Repr: spec.IntKind(repr), Members: members}, nil

	case spec.KindHandle:
		sub, err := r.str()
		if err != nil {
			return nil, err
		}
		return spec.HandleType{SubKind: sub}, nil

	case spec.KindArray:
		itemSize, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		item, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		return spec.ArrayType{Item: item, ItemSize: uint32(itemSize)}, nil

	case spec.KindRecord:
		size, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		members := make([]spec.RecordMember, n)
		for i := range members {
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			offset, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			mt, err := decodeType(r)
			if err != nil {
				return nil, err
			}
			members[i] = spec.RecordMember{Name: name, Offset: uint32(offset), Type: mt}
		}
		return spec.RecordType{Size: uint32(size), Members: members}, nil

	case spec.KindConstPointer:
		elem, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		return spec.ConstPointerType{Elem: elem}, nil

	case spec.KindPointer:
		elem, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		return spec.PointerType{Elem: elem}, nil

	case spec.KindVariant:
		tagRepr, err := r.u8()
		if err != nil {
			return nil, err
		}
		payloadOffset, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		size, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		cases := make([]spec.VariantCase, n)
		for i := range cases {
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			hasPayload, err := r.boolean()
			if err != nil {
				return nil, err
			}
			var payload spec.Type
			if hasPayload {
				payload, err = decodeType(r)
				if err != nil {
					return nil, err
				}
			}
			cases[i] = spec.VariantCase{Name: name, Payload: payload}
		}
		return spec.VariantType{
			TagRepr:       spec.IntKind(tagRepr),
			PayloadOffset: uint32(payloadOffset),
			Size:          uint32(size),
			Cases:         cases,
		}, nil

	default:
		return nil, errs.Unreachable(errs.PhaseWire, "Type", kindByte)
	}
}

// ---- spec.ValueSpec ----

func encodeValueSpec(w *writer, v spec.ValueSpec) {
	w.u8(byte(v.ValueKind()))
	switch vv := v.(type) {
	case spec.ResourceRef:
		w.uvarint(vv.ID)
	case spec.RawValue:
		encodeType(w, vv.Type)
		encodeRawBody(w, vv.Body)
	default:
		panic("wire: unreachable ValueSpec kind in encodeValueSpec")
	}
}

func decodeValueSpec(r *reader) (spec.ValueSpec, error) {
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch spec.ValueSpecKind(kindByte) {
	case spec.ValueSpecResource:
		id, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return spec.ResourceRef{ID: id}, nil
	case spec.ValueSpecRaw:
		t, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		body, err := decodeRawBody(r)
		if err != nil {
			return nil, err
		}
		return spec.RawValue{Type: t, Body: body}, nil
	default:
		return nil, errs.Unreachable(errs.PhaseWire, "ValueSpec", kindByte)
	}
}

func encodeRawBody(w *writer, b spec.RawBody) {
	w.u8(byte(b.BodyKind()))
	switch bb := b.(type) {
	case spec.BuiltinValue:
		w.u8(byte(bb.Int))
		w.uvarint(bb.Unsigned)
		w.uvarint(uint64(bb.Signed))
	case spec.StringValue:
		w.rawBytes(bb.Bytes)
	case spec.BitflagsValue:
		w.uvarint(uint64(len(bb.Bits)))
		for _, bit := range bb.Bits {
			w.boolean(bit)
		}
	case spec.HandleValue:
		w.uvarint(uint64(bb.Value))
	case spec.ArrayValue:
		w.uvarint(uint64(len(bb.Items)))
		for _, item := range bb.Items {
			encodeValueSpec(w, item)
		}
	case spec.RecordValue:
		w.uvarint(uint64(len(bb.Fields)))
		for _, f := range bb.Fields {
			w.str(f.Name)
			encodeValueSpec(w, f.Value)
		}
	case spec.ConstPointerValue:
		w.uvarint(uint64(len(bb.Items)))
		for _, item := range bb.Items {
			encodeValueSpec(w, item)
		}
	case spec.PointerValue:
		w.u8(byte(bb.Alloc.Kind))
		switch bb.Alloc.Kind {
		case spec.PointerAllocConst:
			w.uvarint(uint64(bb.Alloc.Size))
		case spec.PointerAllocResource:
			w.uvarint(bb.Alloc.ResourceID)
		default:
			panic("wire: unreachable PointerAllocKind in encodeRawBody")
		}
	case spec.VariantValue:
		w.uvarint(uint64(bb.CaseIdx))
		w.boolean(bb.Payload != nil)
		if bb.Payload != nil {
			encodeValueSpec(w, bb.Payload)
		}
	default:
		panic("wire: unreachable RawBody kind in encodeRawBody")
	}
}

func decodeRawBody(r *reader) (spec.RawBody, error) {
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch spec.RawBodyKind(kindByte) {
	case spec.BodyBuiltin:
		ik, err := r.u8()
		if err != nil {
			return nil, err
		}
		unsigned, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		signed, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return spec.BuiltinValue{Int: spec.IntKind(ik), Unsigned: unsigned, Signed: int64(signed)}, nil

	case spec.BodyString:
		b, err := r.rawBytes()
		if err != nil {
			return nil, err
		}
		return spec.StringValue{Bytes: append([]byte(nil), b...)}, nil

	case spec.BodyBitflags:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		bits := make([]bool, n)
		for i := range bits {
			bits[i], err = r.boolean()
			if err != nil {
				return nil, err
			}
		}
		return spec.BitflagsValue{Bits: bits}, nil

	case spec.BodyHandle:
		v, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return spec.HandleValue{Value: uint32(v)}, nil

	case spec.BodyArray:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		items := make([]spec.ValueSpec, n)
		for i := range items {
			items[i], err = decodeValueSpec(r)
			if err != nil {
				return nil, err
			}
		}
		return spec.ArrayValue{Items: items}, nil

	case spec.BodyRecord:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		fields := make([]spec.RecordField, n)
		for i := range fields {
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			val, err := decodeValueSpec(r)
			if err != nil {
				return nil, err
			}
			fields[i] = spec.RecordField{Name: name, Value: val}
		}
		return spec.RecordValue{Fields: fields}, nil

	case spec.BodyConstPointer:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		items := make([]spec.ValueSpec, n)
		for i := range items {
			items[i], err = decodeValueSpec(r)
			if err != nil {
				return nil, err
			}
		}
		return spec.ConstPointerValue{Items: items}, nil

	case spec.BodyPointer:
		allocKind, err := r.u8()
		if err != nil {
			return nil, err
		}
		var alloc spec.PointerAlloc
		alloc.Kind = spec.PointerAllocKind(allocKind)
		switch alloc.Kind {
		case spec.PointerAllocConst:
			size, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			alloc.Size = uint32(size)
		case spec.PointerAllocResource:
			id, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			alloc.ResourceID = id
		default:
			return nil, errs.Unreachable(errs.PhaseWire, "PointerAllocKind", allocKind)
		}
		return spec.PointerValue{Alloc: alloc}, nil

	case spec.BodyVariant:
		idx, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		hasPayload, err := r.boolean()
		if err != nil {
			return nil, err
		}
		var payload spec.ValueSpec
		if hasPayload {
			payload, err = decodeValueSpec(r)
			if err != nil {
				return nil, err
			}
		}
		return spec.VariantValue{CaseIdx: uint32(idx), Payload: payload}, nil

	default:
		return nil, errs.Unreachable(errs.PhaseWire, "RawBody", kindByte)
	}
}

// ---- spec.ResultSpec ----

func encodeResultSpec(w *writer, rs spec.ResultSpec) {
	w.u8(byte(rs.ResultKind()))
	switch r := rs.(type) {
	case spec.IgnoreResult:
		encodeType(w, r.Type)
	case spec.ResourceResult:
		encodeType(w, r.Type)
		w.uvarint(r.ID)
	default:
		panic("wire: unreachable ResultSpec kind in encodeResultSpec")
	}
}

func decodeResultSpec(r *reader) (spec.ResultSpec, error) {
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch spec.ResultSpecKind(kindByte) {
	case spec.ResultIgnore:
		t, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		return spec.IgnoreResult{Type: t}, nil
	case spec.ResultResource:
		t, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		id, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return spec.ResourceResult{Type: t, ID: id}, nil
	default:
		return nil, errs.Unreachable(errs.PhaseWire, "ResultSpec", kindByte)
	}
}

// ---- PureValue / ValueView ----

func encodeValueView(w *writer, v ValueView) {
	w.uvarint(uint64(v.MemoryOffset))
	encodePureValue(w, v.Content)
}

func decodeValueView(r *reader) (ValueView, error) {
	off, err := r.uvarint()
	if err != nil {
		return ValueView{}, err
	}
	pv, err := decodePureValue(r)
	if err != nil {
		return ValueView{}, err
	}
	return ValueView{MemoryOffset: uint32(off), Content: pv}, nil
}

func encodePureValue(w *writer, v PureValue) {
	w.u8(byte(v.PureKind()))
	switch pv := v.(type) {
	case PureBuiltin:
		w.u8(byte(pv.Int))
		w.uvarint(pv.Unsigned)
		w.uvarint(uint64(pv.Signed))
	case PureHandle:
		w.uvarint(uint64(pv.Value))
	case PureList:
		w.uvarint(uint64(len(pv.Items)))
		for _, it := range pv.Items {
			encodeValueView(w, it)
		}
	case PureRecord:
		w.uvarint(uint64(len(pv.Fields)))
		for _, f := range pv.Fields {
			w.str(f.Name)
			encodeValueView(w, f.View)
		}
	case PurePointer:
		w.uvarint(uint64(len(pv.Items)))
		for _, it := range pv.Items {
			encodeValueView(w, it)
		}
	default:
		panic("wire: unreachable PureValue kind in encodePureValue")
	}
}

func decodePureValue(r *reader) (PureValue, error) {
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch PureValueKind(kindByte) {
	case PureBuiltinKind:
		ik, err := r.u8()
		if err != nil {
			return nil, err
		}
		unsigned, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		signed, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return PureBuiltin{Int: spec.IntKind(ik), Unsigned: unsigned, Signed: int64(signed)}, nil

	case PureHandleKind:
		v, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return PureHandle{Value: uint32(v)}, nil

	case PureListKind:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		items := make([]ValueView, n)
		for i := range items {
			items[i], err = decodeValueView(r)
			if err != nil {
				return nil, err
			}
		}
		return PureList{Items: items}, nil

	case PureRecordKind:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		fields := make([]NamedView, n)
		for i := range fields {
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			view, err := decodeValueView(r)
			if err != nil {
				return nil, err
			}
			fields[i] = NamedView{Name: name, View: view}
		}
		return PureRecord{Fields: fields}, nil

	case PurePointerKind:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		items := make([]ValueView, n)
		for i := range items {
			items[i], err = decodeValueView(r)
			if err != nil {
				return nil, err
			}
		}
		return PurePointer{Items: items}, nil

	default:
		return nil, errs.Unreachable(errs.PhaseWire, "PureValue", kindByte)
	}
}

// ---- Request / Response ----

// RequestKind discriminates the wire Request union (§4.E grammar).
type RequestKind uint8

const (
	WireRequestDecl RequestKind = iota
	WireRequestCall
)

// Request is the wire-level counterpart of program.Request: fully
// concrete, ready to serialize to every child identically.
type Request interface {
	WireRequestKind() RequestKind
}

// DeclRequest seeds a host-known resource in the executor's table.
type DeclRequest struct {
	Value      spec.HandleValue
	ResourceID uint64
}

func (DeclRequest) WireRequestKind() RequestKind { return WireRequestDecl }

// CallRequest invokes one WASI preview1 function by ordinal.
type CallRequest struct {
	Params  []spec.ValueSpec
	Results []spec.ResultSpec
	Func    spec.FuncID
}

func (CallRequest) WireRequestKind() RequestKind { return WireRequestCall }

// ResponseKind discriminates the wire Response union.
type ResponseKind uint8

const (
	WireResponseDecl ResponseKind = iota
	WireResponseCall
)

// Response is the wire-level counterpart of an executor's reply.
type Response interface {
	WireResponseKind() ResponseKind
}

// DeclResponse acknowledges a DeclRequest.
type DeclResponse struct{}

func (DeclResponse) WireResponseKind() ResponseKind { return WireResponseDecl }

// CallResponse reports a call's errno plus post-call views of every
// mutated param and produced result.
type CallResponse struct {
	ParamViews  []ValueView
	ResultViews []ValueView
	Errno       int32
}

func (CallResponse) WireResponseKind() ResponseKind { return WireResponseCall }

// EncodeRequest serializes req to its wire body (unframed).
func EncodeRequest(req Request) []byte {
	w := &writer{}
	w.u8(byte(req.WireRequestKind()))
	switch rr := req.(type) {
	case DeclRequest:
		w.uvarint(rr.ResourceID)
		w.uvarint(uint64(rr.Value.Value))
	case CallRequest:
		w.u8(byte(rr.Func))
		w.uvarint(uint64(len(rr.Params)))
		for _, p := range rr.Params {
			encodeValueSpec(w, p)
		}
		w.uvarint(uint64(len(rr.Results)))
		for _, r := range rr.Results {
			encodeResultSpec(w, r)
		}
	default:
		panic("wire: unreachable Request kind in EncodeRequest")
	}
	return w.buf
}

// DecodeRequest parses a wire body previously produced by EncodeRequest.
func DecodeRequest(body []byte) (Request, error) {
	r := newReader(body)
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch RequestKind(kindByte) {
	case WireRequestDecl:
		id, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		v, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return DeclRequest{ResourceID: id, Value: spec.HandleValue{Value: uint32(v)}}, nil

	case WireRequestCall:
		fid, err := r.u8()
		if err != nil {
			return nil, err
		}
		nParams, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		params := make([]spec.ValueSpec, nParams)
		for i := range params {
			params[i], err = decodeValueSpec(r)
			if err != nil {
				return nil, err
			}
		}
		nResults, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		results := make([]spec.ResultSpec, nResults)
		for i := range results {
			results[i], err = decodeResultSpec(r)
			if err != nil {
				return nil, err
			}
		}
		return CallRequest{Func: spec.FuncID(fid), Params: params, Results: results}, nil

	default:
		return nil, errs.Unreachable(errs.PhaseWire, "Request", kindByte)
	}
}

// EncodeResponse serializes resp to its wire body (unframed).
func EncodeResponse(resp Response) []byte {
	w := &writer{}
	w.u8(byte(resp.WireResponseKind()))
	switch rr := resp.(type) {
	case DeclResponse:
	case CallResponse:
		w.uvarint(uint64(uint32(rr.Errno)))
		w.uvarint(uint64(len(rr.ParamViews)))
		for _, v := range rr.ParamViews {
			encodeValueView(w, v)
		}
		w.uvarint(uint64(len(rr.ResultViews)))
		for _, v := range rr.ResultViews {
			encodeValueView(w, v)
		}
	default:
		panic("wire: unreachable Response kind in EncodeResponse")
	}
	return w.buf
}

// DecodeResponse parses a wire body previously produced by EncodeResponse.
func DecodeResponse(body []byte) (Response, error) {
	r := newReader(body)
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch ResponseKind(kindByte) {
	case WireResponseDecl:
		return DeclResponse{}, nil

	case WireResponseCall:
		errnoRaw, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		nParams, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		paramViews := make([]ValueView, nParams)
		for i := range paramViews {
			paramViews[i], err = decodeValueView(r)
			if err != nil {
				return nil, err
			}
		}
		nResults, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		resultViews := make([]ValueView, nResults)
		for i := range resultViews {
			resultViews[i], err = decodeValueView(r)
			if err != nil {
				return nil, err
			}
		}
		return CallResponse{
			Errno:       int32(uint32(errnoRaw)),
			ParamViews:  paramViews,
			ResultViews: resultViews,
		}, nil

	default:
		return nil, errs.Unreachable(errs.PhaseWire, "Response", kindByte)
	}
}
