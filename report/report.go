package report

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/orchestrator"
	"github.com/wasit-fuzz/wasit/spec"
	"github.com/wasit-fuzz/wasit/wire"
)

// ChildResult is the JSON-stable projection of one child's outcome for
// a divergence record; explicit field tags keep key order and casing
// fixed regardless of struct layout changes.
type ChildResult struct {
	Kind       string          `json:"kind"`
	Response   json.RawMessage `json:"response,omitempty"`
	StderrTail string          `json:"stderr_tail,omitempty"`
	ExitCode   int             `json:"exit_code,omitempty"`
}

// PreopenEntry is one file the host-side preopen directory held at the
// moment a divergence was recorded, keyed by its path relative to the
// preopen root (§4.H "the host-side preopen snapshot").
type PreopenEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Divergence is one recorded disagreement among runtimes for a single
// program step (§4.H).
type Divergence struct {
	ProgramHash string                 `json:"program_hash"`
	Class       string                 `json:"class"`
	Step        int                    `json:"step"`
	Request     json.RawMessage        `json:"request"`
	Outcomes    map[string]ChildResult `json:"outcomes"`
	Preopen     []PreopenEntry         `json:"preopen,omitempty"`
}

// New builds a Divergence record from an orchestrator step outcome,
// classifying it in the process. preopenDir is snapshotted as it
// stands when New is called.
func New(programHash string, step orchestrator.StepOutcome, preopenDir string) (Divergence, error) {
	class := Classify(childOutcomesOf(step.Outcomes))

	reqBytes, err := json.Marshal(requestView(step.Request))
	if err != nil {
		return Divergence{}, errs.New(errs.PhaseReport, errs.KindInvalidData).
			Detail("marshal request for step %d", step.Step).Cause(err).Build()
	}

	outcomes := make(map[string]ChildResult, len(step.Outcomes))
	for name, o := range step.Outcomes {
		cr := ChildResult{Kind: outcomeKindName(o.Kind), StderrTail: o.StderrTail}
		if o.Kind == orchestrator.OutcomeOk && o.Response != nil {
			respBytes, err := json.Marshal(responseView(o.Response))
			if err != nil {
				return Divergence{}, errs.New(errs.PhaseReport, errs.KindInvalidData).
					Detail("marshal response for child %q", name).Cause(err).Build()
			}
			cr.Response = respBytes
		}
		outcomes[name] = cr
	}

	preopen, err := snapshotPreopen(preopenDir)
	if err != nil {
		return Divergence{}, errs.New(errs.PhaseReport, errs.KindInvalidData).
			Detail("snapshot preopen dir %q", preopenDir).Cause(err).Build()
	}

	return Divergence{
		ProgramHash: programHash,
		Class:       class.String(),
		Step:        step.Step,
		Request:     reqBytes,
		Outcomes:    outcomes,
		Preopen:     preopen,
	}, nil
}

// snapshotPreopen walks dir and records every regular file's path
// (relative to dir, forward-slash separated) and size. A missing dir
// (a run that never created one) snapshots as empty rather than an error.
func snapshotPreopen(dir string) ([]PreopenEntry, error) {
	if dir == "" {
		return nil, nil
	}
	var entries []PreopenEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, PreopenEntry{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return entries, nil
}

// Write serializes d to workspace/runs/<runIndex>/divergences/<n>.json.
func Write(workspaceDir string, runIndex, n int, d Divergence) error {
	dir := filepath.Join(workspaceDir, "runs", fmt.Sprintf("%d", runIndex), "divergences")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.New(errs.PhaseReport, errs.KindInvalidData).
			Detail("create divergences directory %q", dir).Cause(err).Build()
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errs.New(errs.PhaseReport, errs.KindInvalidData).
			Detail("marshal divergence record").Cause(err).Build()
	}

	path := filepath.Join(dir, fmt.Sprintf("%d.json", n))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.New(errs.PhaseReport, errs.KindInvalidData).
			Detail("write divergence record %q", path).Cause(err).Build()
	}
	return nil
}

func childOutcomesOf(m map[string]orchestrator.ChildOutcome) []orchestrator.ChildOutcome {
	out := make([]orchestrator.ChildOutcome, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	return out
}

func outcomeKindName(k orchestrator.ChildOutcomeKind) string {
	switch k {
	case orchestrator.OutcomeOk:
		return "ok"
	case orchestrator.OutcomeTimeout:
		return "timeout"
	case orchestrator.OutcomeCrash:
		return "crash"
	default:
		panic("report: unreachable ChildOutcomeKind in outcomeKindName")
	}
}

// requestJSON and responseJSON give wire.Request/wire.Response a plain
// JSON shape without exposing their unexported codec internals.

type requestJSON struct {
	Kind       string            `json:"kind"`
	FuncID     *int              `json:"func_id,omitempty"`
	ResourceID *uint64           `json:"resource_id,omitempty"`
	Value      *spec.HandleValue `json:"value,omitempty"`
	Params     []spec.ValueSpec  `json:"params,omitempty"`
	Results    []spec.ResultSpec `json:"results,omitempty"`
}

func requestView(req wire.Request) requestJSON {
	switch r := req.(type) {
	case wire.DeclRequest:
		id := r.ResourceID
		return requestJSON{Kind: "decl", ResourceID: &id, Value: &r.Value}
	case wire.CallRequest:
		id := int(r.Func)
		return requestJSON{Kind: "call", FuncID: &id, Params: r.Params, Results: r.Results}
	default:
		panic("report: unreachable wire.Request kind in requestView")
	}
}

type responseJSON struct {
	Kind        string           `json:"kind"`
	Errno       *int32           `json:"errno,omitempty"`
	ParamViews  []wire.ValueView `json:"param_views,omitempty"`
	ResultViews []wire.ValueView `json:"result_views,omitempty"`
}

func responseView(resp wire.Response) responseJSON {
	switch r := resp.(type) {
	case wire.DeclResponse:
		return responseJSON{Kind: "decl"}
	case wire.CallResponse:
		errno := r.Errno
		return responseJSON{Kind: "call", Errno: &errno, ParamViews: r.ParamViews, ResultViews: r.ResultViews}
	default:
		panic("report: unreachable wire.Response kind in responseView")
	}
}
