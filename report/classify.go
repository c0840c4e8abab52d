package report

import (
	"golang.org/x/sys/unix"

	"github.com/wasit-fuzz/wasit/orchestrator"
	"github.com/wasit-fuzz/wasit/wire"
)

// Class discriminates the dominant axis of a divergence (§4.H).
type Class uint8

const (
	// ClassNone means the outcomes did not actually diverge; Classify
	// only returns this for a caller that ran it speculatively.
	ClassNone Class = iota
	ClassReturnOnly
	ClassBuffer
	ClassAvailability
	ClassLiveness
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassReturnOnly:
		return "return-only"
	case ClassBuffer:
		return "buffer"
	case ClassAvailability:
		return "availability"
	case ClassLiveness:
		return "liveness"
	default:
		panic("report: unreachable Class in String")
	}
}

// Classify assigns a dominant axis to a set of per-child outcomes for
// one request (§4.H):
//   - Liveness: any child timed out or crashed.
//   - Availability: surviving children's errnos differ but every one
//     of them is in the "unimplemented call" family (ENOTSUP/EINVAL).
//   - Return-only: surviving children's errnos differ, but their
//     normalized param/result content agrees.
//   - Buffer: surviving children's normalized content differs (whether
//     or not their errnos also differ, unless Availability applies).
func Classify(outcomes []orchestrator.ChildOutcome) Class {
	var ok []orchestrator.ChildOutcome
	for _, o := range outcomes {
		switch o.Kind {
		case orchestrator.OutcomeTimeout, orchestrator.OutcomeCrash:
			return ClassLiveness
		case orchestrator.OutcomeOk:
			ok = append(ok, o)
		default:
			panic("report: unreachable ChildOutcomeKind in Classify")
		}
	}
	if len(ok) < 2 {
		return ClassNone
	}

	first, isCall := ok[0].Response.(wire.CallResponse)
	if !isCall {
		return ClassNone
	}

	errnoDiffers := false
	contentDiffers := false
	allUnsupportedFamily := true

	for _, o := range ok[1:] {
		cr, isCall := o.Response.(wire.CallResponse)
		if !isCall {
			continue
		}
		if orchestrator.NormalizeErrno(cr.Errno) != orchestrator.NormalizeErrno(first.Errno) {
			errnoDiffers = true
			if !isUnsupportedFamily(cr.Errno) || !isUnsupportedFamily(first.Errno) {
				allUnsupportedFamily = false
			}
		}
		if !viewsMatch(cr.ParamViews, first.ParamViews) || !viewsMatch(cr.ResultViews, first.ResultViews) {
			contentDiffers = true
		}
	}

	switch {
	case errnoDiffers && allUnsupportedFamily:
		return ClassAvailability
	case contentDiffers:
		return ClassBuffer
	case errnoDiffers:
		return ClassReturnOnly
	default:
		return ClassNone
	}
}

func isUnsupportedFamily(errno int32) bool {
	switch unix.Errno(errno) {
	case unix.ENOTSUP, unix.EINVAL:
		return true
	default:
		return false
	}
}

func viewsMatch(a, b []wire.ValueView) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !orchestrator.Equal(orchestrator.Normalize(a[i].Content), orchestrator.Normalize(b[i].Content)) {
			return false
		}
	}
	return true
}
