package gen

import (
	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/spec"
)

// ErrNoLiveResource is returned by Generate when a spec.HandleType
// cannot be satisfied from the store snapshot. Callers (program
// synthesizer) retry with a different choice rather than treating this
// as fatal (§4.C step 1, §7 "Generation errors").
type ErrNoLiveResource struct {
	SubKind string
}

func (e *ErrNoLiveResource) Error() string {
	return errs.New(errs.PhaseGenerate, errs.KindNoRunnable).
		Detail("no live resource of handle sub-kind %q", e.SubKind).
		Build().Error()
}

func noLiveResource(subKind string) error {
	return &ErrNoLiveResource{SubKind: subKind}
}

func depthExceeded(path []string) error {
	return errs.New(errs.PhaseGenerate, errs.KindConstraint).
		Path(path...).
		Detail("max generation depth exceeded").
		Build()
}

// ConstraintOracle is the optional SMT-backed refinement interface (§9):
// given a sketch and a predicate, return a concrete assignment or
// report that none exists. No implementation ships with WASIT — no Go
// z3 binding exists in the example corpus, and the original spec scopes
// SMT support out as "an optional oracle with a documented interface."
type ConstraintOracle interface {
	// Solve attempts to refine sketch into a concrete spec.ValueSpec
	// satisfying pred. ok is false if the oracle proved no satisfying
	// assignment exists (Unsat).
	Solve(sketch spec.ValueSpec, pred func(spec.ValueSpec) bool) (refined spec.ValueSpec, ok bool)
}
