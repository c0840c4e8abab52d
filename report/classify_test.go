package report

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/wasit-fuzz/wasit/orchestrator"
	"github.com/wasit-fuzz/wasit/wire"
)

func TestClassifyLivenessOnTimeout(t *testing.T) {
	outcomes := []orchestrator.ChildOutcome{
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: 0}},
		{Kind: orchestrator.OutcomeTimeout},
	}
	if got := Classify(outcomes); got != ClassLiveness {
		t.Fatalf("Classify = %v, want Liveness", got)
	}
}

func TestClassifyLivenessOnCrash(t *testing.T) {
	outcomes := []orchestrator.ChildOutcome{
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: 0}},
		{Kind: orchestrator.OutcomeCrash, ExitCode: 1},
	}
	if got := Classify(outcomes); got != ClassLiveness {
		t.Fatalf("Classify = %v, want Liveness", got)
	}
}

func TestClassifyReturnOnly(t *testing.T) {
	outcomes := []orchestrator.ChildOutcome{
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: 0}},
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: int32(unix.EPERM)}},
	}
	if got := Classify(outcomes); got != ClassReturnOnly {
		t.Fatalf("Classify = %v, want ReturnOnly", got)
	}
}

func TestClassifyBufferOnMismatchedContent(t *testing.T) {
	outcomes := []orchestrator.ChildOutcome{
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{
			Errno:       0,
			ResultViews: []wire.ValueView{{Content: wire.PureBuiltin{Unsigned: 1}}},
		}},
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{
			Errno:       0,
			ResultViews: []wire.ValueView{{Content: wire.PureBuiltin{Unsigned: 2}}},
		}},
	}
	if got := Classify(outcomes); got != ClassBuffer {
		t.Fatalf("Classify = %v, want Buffer", got)
	}
}

func TestClassifyAvailabilityOnUnsupportedFamily(t *testing.T) {
	outcomes := []orchestrator.ChildOutcome{
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: int32(unix.ENOTSUP)}},
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: int32(unix.EINVAL)}},
	}
	if got := Classify(outcomes); got != ClassAvailability {
		t.Fatalf("Classify = %v, want Availability", got)
	}
}

func TestClassifyNoneWhenAllAgree(t *testing.T) {
	outcomes := []orchestrator.ChildOutcome{
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: 0}},
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: 0}},
	}
	if got := Classify(outcomes); got != ClassNone {
		t.Fatalf("Classify = %v, want None", got)
	}
}

func TestClassifyEintrEagainNotADivergence(t *testing.T) {
	outcomes := []orchestrator.ChildOutcome{
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: int32(unix.EINTR)}},
		{Kind: orchestrator.OutcomeOk, Response: wire.CallResponse{Errno: int32(unix.EAGAIN)}},
	}
	if got := Classify(outcomes); got != ClassNone {
		t.Fatalf("Classify = %v, want None (EINTR/EAGAIN coalesced)", got)
	}
}
