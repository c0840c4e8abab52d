package program

import (
	"context"
	"errors"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/gen"
	"github.com/wasit-fuzz/wasit/resource"
	"github.com/wasit-fuzz/wasit/spec"
)

// BaseDirID and BaseDirSubKind name the bootstrap preopen directory
// handle the synthesizer seeds when nothing else is runnable (§4.D
// "Failure semantics").
const (
	BaseDirID      uint64 = 3
	BaseDirSubKind        = "dir"
)

// Synthesizer steps a Program forward against an evolving resource
// store, picking runnable functions and delegating value fabrication
// to gen.
type Synthesizer struct {
	funcs     []spec.FuncSig
	store     *resource.Store
	gen       *gen.Generator
	nextID    uint64
	seededDir bool
}

// New creates a Synthesizer over the full preview1 catalog, using
// store as the evolving resource snapshot and generator for fresh
// values. nextID is the first id available for newly produced
// resources; ids below it are assumed reserved by the caller (e.g. for
// pre-seeded preopens).
func New(store *resource.Store, generator *gen.Generator, nextID uint64) *Synthesizer {
	return &Synthesizer{
		funcs:  spec.Preview1Funcs(),
		store:  store,
		gen:    generator,
		nextID: nextID,
	}
}

// Step produces the next Request. It retries internally on a
// gen.ErrNoLiveResource (drawing again among the runnable functions) before
// giving up and returning an error.
func (s *Synthesizer) Step() (Request, error) {
	runnable := s.runnableFuncs()
	if len(runnable) == 0 {
		return s.bootstrapDecl()
	}

	const maxAttempts = 8
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		sig := runnable[s.gen.Controls.RNG.IntN(len(runnable))]
		req, err := s.buildCall(sig)
		if err == nil {
			return req, nil
		}
		var nle *gen.ErrNoLiveResource
		if !errors.As(err, &nle) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// runnableFuncs returns every FuncSig whose consume-resource params can
// all be bound to a live resource right now (§4.D step 1).
func (s *Synthesizer) runnableFuncs() []spec.FuncSig {
	var out []spec.FuncSig
	for _, sig := range s.funcs {
		if s.isRunnable(sig) {
			out = append(out, sig)
		}
	}
	return out
}

func (s *Synthesizer) isRunnable(sig spec.FuncSig) bool {
	for _, p := range sig.Params {
		if !p.HasTag(spec.TagConsumesResource) {
			continue
		}
		ht, ok := p.Type.(spec.HandleType)
		if !ok {
			continue
		}
		if len(s.store.ByHandleSubKind(ht.SubKind)) == 0 {
			return false
		}
	}
	return true
}

// bootstrapDecl seeds the preopen directory resource and returns it as
// the next Request. It fails if that resource id is already taken,
// meaning the program is genuinely stuck.
func (s *Synthesizer) bootstrapDecl() (Request, error) {
	if s.seededDir && s.store.Has(BaseDirID) {
		return nil, errs.New(errs.PhaseSynthesize, errs.KindNoRunnable).
			Detail("no runnable function and bootstrap resource already seeded").Build()
	}
	s.seededDir = true
	return DeclRequest{
		ResourceID: BaseDirID,
		Type:       spec.HandleType{SubKind: BaseDirSubKind},
		Value:      spec.HandleValue{Value: uint32(BaseDirID)},
	}, nil
}

// buildCall implements §4.D steps 2-4 for one chosen FuncSig.
func (s *Synthesizer) buildCall(sig spec.FuncSig) (Request, error) {
	params := make([]CallParam, len(sig.Params))
	for i, p := range sig.Params {
		v, err := s.gen.Generate(p.Type)
		if err != nil {
			return nil, err
		}
		params[i] = CallParam{Param: p, Value: v}
	}
	s.reconcileLengths(sig.Params, params)

	results := make([]spec.ResultSpec, len(sig.Results))
	for i, r := range sig.Results {
		if r.HasTag(spec.TagProducesResource) {
			id := s.nextID
			s.nextID++
			results[i] = spec.ResourceResult{Type: r.Type, ID: id}
			continue
		}
		results[i] = spec.IgnoreResult{Type: r.Type}
	}

	return CallRequest{Func: sig, Params: params, Results: results}, nil
}

// reconcileLengths overwrites length-carrying params (TagLengthOf) so
// they agree with the element count of the array/pointer param they
// describe, keeping the generated call internally consistent.
func (s *Synthesizer) reconcileLengths(sig []spec.Param, params []CallParam) {
	for i, p := range sig {
		var lengthRef = -1
		for _, tag := range p.Tags {
			if tag.Kind == spec.TagLengthOf {
				lengthRef = tag.Ref
			}
		}
		if lengthRef < 0 || lengthRef >= len(params) {
			continue
		}

		n, ok := elementCount(params[lengthRef].Value)
		if !ok {
			continue
		}

		bv, ok := params[i].Value.(spec.RawValue).Body.(spec.BuiltinValue)
		if !ok {
			continue
		}
		bv.Unsigned = uint64(n)
		params[i].Value = spec.RawValue{Type: params[i].Value.(spec.RawValue).Type, Body: bv}
	}
}

func elementCount(v spec.ValueSpec) (int, bool) {
	raw, ok := v.(spec.RawValue)
	if !ok {
		return 0, false
	}
	switch b := raw.Body.(type) {
	case spec.ArrayValue:
		return len(b.Items), true
	case spec.ConstPointerValue:
		return len(b.Items), true
	default:
		return 0, false
	}
}

// Run drives Step repeatedly until n requests are synthesized or ctx's
// deadline elapses (§4.D "Termination").
func Run(ctx context.Context, s *Synthesizer, n int) (*Program, error) {
	prog := &Program{Requests: make([]Request, 0, n)}
	for len(prog.Requests) < n {
		select {
		case <-ctx.Done():
			return prog, nil
		default:
		}

		req, err := s.Step()
		if err != nil {
			return prog, err
		}
		prog.Requests = append(prog.Requests, req)
	}
	return prog, nil
}
