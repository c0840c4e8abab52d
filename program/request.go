package program

import "github.com/wasit-fuzz/wasit/spec"

// RequestKind discriminates the Request union (§4.E).
type RequestKind uint8

const (
	RequestDecl RequestKind = iota
	RequestCall
)

// Request is a closed union over the two executor request shapes.
type Request interface {
	RequestKind() RequestKind
}

// DeclRequest seeds a host-known resource directly, bypassing a call.
// Value is typed spec.HandleValue, and the wire form of a Decl carries
// only that handle integer, so no other shape can reach the executor
// (§9, open question resolved).
type DeclRequest struct {
	Value      spec.HandleValue
	Type       spec.Type
	ResourceID uint64
}

func (DeclRequest) RequestKind() RequestKind { return RequestDecl }

// CallParam pairs a parameter slot's declared shape with the concrete
// ValueSpec chosen to fill it.
type CallParam struct {
	Param spec.Param
	Value spec.ValueSpec
}

// CallRequest invokes one WASI preview1 function with bound parameters
// and a disposition for each result slot.
type CallRequest struct {
	Func    spec.FuncSig
	Params  []CallParam
	Results []spec.ResultSpec
}

func (CallRequest) RequestKind() RequestKind { return RequestCall }

// Program is an ordered sequence of requests forming one fuzzing run.
type Program struct {
	Requests []Request
}
