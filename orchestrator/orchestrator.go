package orchestrator

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/program"
	"github.com/wasit-fuzz/wasit/resource"
	"github.com/wasit-fuzz/wasit/spec"
	"github.com/wasit-fuzz/wasit/wire"
)

// ChildOutcomeKind discriminates one child's result for one step.
type ChildOutcomeKind uint8

const (
	OutcomeOk ChildOutcomeKind = iota
	OutcomeTimeout
	OutcomeCrash
)

// nondeterministicFuncs lists WASI calls whose result *content* is
// exempt from cross-runtime comparison (§8 scenario S4): their errno
// and shape still participate in divergence detection.
var nondeterministicFuncs = map[spec.FuncID]bool{
	spec.RandomGet:    true,
	spec.ClockTimeGet: true,
	spec.ClockResGet:  true,
}

// ChildOutcome is one child's result for one program step (§4.G step
// 5's outcome enum).
type ChildOutcome struct {
	Response   wire.Response
	StderrTail string
	Kind       ChildOutcomeKind
	ExitCode   int
}

// StepOutcome records every child's outcome for a single request, plus
// whether their normalized responses agreed.
type StepOutcome struct {
	Request  wire.Request
	Outcomes map[string]ChildOutcome
	Step     int
	Diverged bool
}

// Orchestrator drives a fixed set of children through the same program
// and owns the single host-side resource store they collectively
// populate (§5 "the host-side Resource store is owned by one
// orchestrator instance").
type Orchestrator struct {
	children       []Child
	store          *resource.Store
	requestTimeout time.Duration
}

// New creates an Orchestrator over children, using timeout as the
// per-request, per-child deadline (§4.G step 2).
func New(children []Child, store *resource.Store, timeout time.Duration) *Orchestrator {
	return &Orchestrator{children: children, store: store, requestTimeout: timeout}
}

// RunProgram executes every request in p against all children in
// lockstep (§4.G steps 1-5), stopping early only on an unrecoverable
// per-step error (not a mere divergence, which is recorded and
// continued past per policy).
func (o *Orchestrator) RunProgram(ctx context.Context, p *program.Program) ([]StepOutcome, error) {
	outcomes := make([]StepOutcome, 0, len(p.Requests))

	for i, req := range p.Requests {
		wreq, err := toWireRequest(req)
		if err != nil {
			return outcomes, err
		}

		step := o.runStep(ctx, i, wreq)
		outcomes = append(outcomes, step)

		if !step.Diverged {
			o.installAgreed(req, step)
		} else {
			Logger().Warn("divergence detected", zap.Int("step", i))
		}
	}

	return outcomes, nil
}

// runStep broadcasts one request to every child and collects outcomes
// (§4.G steps 1-2).
func (o *Orchestrator) runStep(ctx context.Context, step int, req wire.Request) StepOutcome {
	type namedOutcome struct {
		name    string
		outcome ChildOutcome
	}
	results := make(chan namedOutcome, len(o.children))

	for _, child := range o.children {
		child := child
		go func() {
			cctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
			defer cancel()

			resp, err := child.Send(cctx, req)
			if err != nil {
				kind := OutcomeCrash
				if wasitErr, ok := err.(*errs.Error); ok && wasitErr.Kind == errs.KindTimeout {
					kind = OutcomeTimeout
				}
				results <- namedOutcome{name: child.Name(), outcome: ChildOutcome{
					Kind:       kind,
					StderrTail: child.StderrTail(),
				}}
				return
			}
			results <- namedOutcome{name: child.Name(), outcome: ChildOutcome{Kind: OutcomeOk, Response: resp}}
		}()
	}

	out := StepOutcome{Step: step, Request: req, Outcomes: make(map[string]ChildOutcome, len(o.children))}
	for range o.children {
		no := <-results
		out.Outcomes[no.name] = no.outcome
	}
	out.Diverged = o.diverges(req, out.Outcomes)
	return out
}

// diverges compares every Ok child's normalized response against the
// first Ok child's (§4.G step 3, §8 property 6): any pairwise
// disagreement in errno or shape is one divergence for this request.
func (o *Orchestrator) diverges(req wire.Request, outcomes map[string]ChildOutcome) bool {
	var baseline *wire.CallResponse
	anyNotOk := false

	for _, out := range outcomes {
		if out.Kind != OutcomeOk {
			anyNotOk = true
			continue
		}
		cr, ok := out.Response.(wire.CallResponse)
		if !ok {
			continue
		}
		if baseline == nil {
			b := cr
			baseline = &b
			continue
		}
		if NormalizeErrno(cr.Errno) != NormalizeErrno(baseline.Errno) {
			return true
		}
		if !viewsEqual(req, cr.ParamViews, baseline.ParamViews) {
			return true
		}
		if !viewsEqual(req, cr.ResultViews, baseline.ResultViews) {
			return true
		}
	}

	return anyNotOk && baseline != nil
}

func viewsEqual(req wire.Request, a, b []wire.ValueView) bool {
	if len(a) != len(b) {
		return false
	}
	skipContent := false
	if call, ok := req.(wire.CallRequest); ok {
		skipContent = nondeterministicFuncs[call.Func]
	}
	if skipContent {
		return true
	}
	for i := range a {
		if !Equal(Normalize(a[i].Content), Normalize(b[i].Content)) {
			return false
		}
	}
	return true
}

// installAgreed installs an undiverged step's outcome into the host
// store (§4.G step 4): a Decl's own bytes for a DeclRequest, or any
// produces-resource result for a CallRequest.
func (o *Orchestrator) installAgreed(req program.Request, step StepOutcome) {
	switch r := req.(type) {
	case program.DeclRequest:
		bytes := littleEndian(uint64(r.Value.Value), 4)
		if err := o.store.Decl(r.ResourceID, r.Type, bytes); err != nil {
			Logger().Warn("install declared resource failed", zap.Uint64("id", r.ResourceID), zap.Error(err))
		}
	case program.CallRequest:
		o.installAgreedResults(r, step)
	default:
		panic("orchestrator: unreachable program.Request kind in installAgreed")
	}
}

// installAgreedResults installs any produces-resource result from an
// undiverged step's first Ok child into the host store (§4.G step 4).
func (o *Orchestrator) installAgreedResults(call program.CallRequest, step StepOutcome) {
	var agreed *wire.CallResponse
	for _, out := range step.Outcomes {
		if out.Kind != OutcomeOk {
			continue
		}
		if cr, ok := out.Response.(wire.CallResponse); ok {
			agreed = &cr
			break
		}
	}
	if agreed == nil {
		return
	}

	for i, rs := range call.Results {
		rr, ok := rs.(spec.ResourceResult)
		if !ok {
			continue
		}
		if i >= len(agreed.ResultViews) {
			continue
		}
		bytes := flattenBytes(agreed.ResultViews[i].Content)
		if err := o.store.InstallResult(rr.ID, rr.Type, bytes); err != nil {
			Logger().Warn("install agreed result failed", zap.Uint64("id", rr.ID), zap.Error(err))
		}
	}
}

// KillAll tears down every child, aggregating independent teardown
// errors rather than stopping at the first one.
func (o *Orchestrator) KillAll() error {
	var err error
	for _, c := range o.children {
		err = multierr.Append(err, c.Kill())
	}
	return err
}

// toWireRequest strips the host-only bookkeeping (declared types,
// static FuncSig shape) that the wire protocol doesn't carry, leaving
// only what the executor needs to act (§4.E).
func toWireRequest(req program.Request) (wire.Request, error) {
	switch r := req.(type) {
	case program.DeclRequest:
		return wire.DeclRequest{Value: r.Value, ResourceID: r.ResourceID}, nil

	case program.CallRequest:
		params := make([]spec.ValueSpec, len(r.Params))
		for i, p := range r.Params {
			params[i] = p.Value
		}
		return wire.CallRequest{Func: r.Func.ID, Params: params, Results: r.Results}, nil

	default:
		panic("orchestrator: unreachable program.Request kind in toWireRequest")
	}
}
