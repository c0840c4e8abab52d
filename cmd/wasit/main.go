package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/wasit-fuzz/wasit/config"
	"github.com/wasit-fuzz/wasit/gen"
	"github.com/wasit-fuzz/wasit/orchestrator"
	"github.com/wasit-fuzz/wasit/program"
	"github.com/wasit-fuzz/wasit/report"
	"github.com/wasit-fuzz/wasit/resource"
)

// requestsPerRun bounds a single program's length; --time-limit is the
// effective bound in practice since synthesis stops at the deadline
// long before this count is reached.
const requestsPerRun = 10000

func main() {
	var (
		timeLimit = flag.Duration("time-limit", 30*time.Second, "wall-clock budget for synthesizing each program")
		count     = flag.Int("c", 1, "number of programs to run")
		strategy  = flag.String("strategy", "stateless", "resource store lifetime across runs: stateful|stateless")
		silent    = flag.Bool("silent", false, "disable the interactive progress UI")
	)
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: wasit <config.yaml> <workspace-dir> [--time-limit d] [-c N] [--strategy stateful|stateless] [--silent]")
		os.Exit(1)
	}
	if *strategy != "stateful" && *strategy != "stateless" {
		fmt.Fprintf(os.Stderr, "wasit: --strategy must be stateful or stateless, got %q\n", *strategy)
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Arg(1), *timeLimit, *count, *strategy, *silent); err != nil {
		fmt.Fprintf(os.Stderr, "wasit: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, workspaceDir string, timeLimit time.Duration, count int, strategy string, silent bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Runtimes) < 2 {
		return fmt.Errorf("need at least two runtime profiles to differentially fuzz, got %d", len(cfg.Runtimes))
	}
	reqTimeout, err := cfg.RequestTimeout()
	if err != nil {
		return fmt.Errorf("read request timeout: %w", err)
	}

	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return fmt.Errorf("create workspace %q: %w", workspaceDir, err)
	}

	rep := newReporter(cfg.Runtimes, workspaceDir, count, silent)
	defer rep.Close()

	var store *resource.Store
	var synth *program.Synthesizer

	newSession := func(seed uint64, preopenDir string) {
		store = resource.New()
		controls := cfg.ToControls()
		controls.RNG = gen.DefaultControls(seed).RNG
		controls.MountBaseDir = preopenDir
		synth = program.New(store, gen.New(store, controls), program.BaseDirID+1)
	}

	sharedPreopen := filepath.Join(workspaceDir, "preopen")
	if strategy == "stateful" {
		if err := os.MkdirAll(sharedPreopen, 0o755); err != nil {
			return fmt.Errorf("create shared preopen dir: %w", err)
		}
		newSession(1, sharedPreopen)
	}

	for i := 0; i < count; i++ {
		rep.RunStart(i, count)

		preopenDir := sharedPreopen
		if strategy == "stateless" {
			preopenDir = filepath.Join(workspaceDir, "runs", strconv.Itoa(i), "preopen")
			if err := os.MkdirAll(preopenDir, 0o755); err != nil {
				return fmt.Errorf("create preopen dir for run %d: %w", i, err)
			}
			newSession(uint64(i)+1, preopenDir)
		}

		divCount, err := runOne(i, cfg, workspaceDir, preopenDir, synth, store, timeLimit, reqTimeout, rep)
		if err != nil {
			return fmt.Errorf("run %d: %w", i, err)
		}
		if divCount > 0 && !cfg.Policy.ContinueOnDivergence {
			break
		}
	}

	return nil
}

// runOne synthesizes and executes one program, writing a divergence
// record per diverging step, and returns how many it found. The
// caller stops issuing further runs on a nonzero count unless
// cfg.Policy.ContinueOnDivergence is set.
func runOne(runIdx int, cfg *config.Config, workspaceDir, preopenDir string, synth *program.Synthesizer, store *resource.Store, timeLimit, reqTimeout time.Duration, rep reporter) (int, error) {
	children, err := buildChildren(cfg.Runtimes, preopenDir)
	if err != nil {
		return 0, fmt.Errorf("start children: %w", err)
	}
	orch := orchestrator.New(children, store, reqTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeLimit)
	prog, err := program.Run(ctx, synth, requestsPerRun)
	cancel()
	if err != nil {
		_ = orch.KillAll()
		return 0, fmt.Errorf("synthesize program: %w", err)
	}

	outcomes, err := orch.RunProgram(context.Background(), prog)
	if killErr := orch.KillAll(); killErr != nil {
		fmt.Fprintf(os.Stderr, "wasit: teardown run %d: %v\n", runIdx, killErr)
	}
	if err != nil {
		return 0, fmt.Errorf("execute program: %w", err)
	}

	progHash := hashProgram(prog)
	divCount := 0
	for _, step := range outcomes {
		rep.Step(runIdx, step)
		if !step.Diverged {
			continue
		}
		d, err := report.New(progHash, step, preopenDir)
		if err != nil {
			return divCount, fmt.Errorf("build divergence record for step %d: %w", step.Step, err)
		}
		if err := report.Write(workspaceDir, runIdx, divCount, d); err != nil {
			return divCount, fmt.Errorf("write divergence record for step %d: %w", step.Step, err)
		}
		divCount++
	}
	rep.RunDone(runIdx, divCount)

	return divCount, writeProgramSnapshot(workspaceDir, runIdx, prog)
}

// buildChildren starts one orchestrator.Child per runtime profile,
// tearing down any already-started children if a later one fails to
// start.
func buildChildren(profiles []config.RuntimeProfile, preopenDir string) ([]orchestrator.Child, error) {
	children := make([]orchestrator.Child, 0, len(profiles))
	for _, p := range profiles {
		c, err := buildChild(p, preopenDir)
		if err != nil {
			for _, started := range children {
				_ = started.Kill()
			}
			return nil, fmt.Errorf("start child %q: %w", p.Name, err)
		}
		children = append(children, c)
	}
	return children, nil
}

func buildChild(p config.RuntimeProfile, preopenDir string) (orchestrator.Child, error) {
	if p.Embedded {
		wasmBytes, err := os.ReadFile(p.ExecutorWasm)
		if err != nil {
			return nil, fmt.Errorf("read executor wasm %q: %w", p.ExecutorWasm, err)
		}
		return orchestrator.NewEmbeddedChild(context.Background(), p.Name, wasmBytes, preopenDir)
	}

	preopenArgs, err := renderPreopenArgs(p.PreopenArgsTemplate, preopenDir)
	if err != nil {
		return nil, err
	}
	args := append(preopenArgs, p.ExecutorWasm)
	return orchestrator.NewProcessChild(p.Name, p.Binary, args...)
}

func renderPreopenArgs(tmpl, dir string) ([]string, error) {
	if tmpl == "" {
		return nil, nil
	}
	t, err := template.New("preopen").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse preopen_args_template %q: %w", tmpl, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, struct{ Dir string }{Dir: dir}); err != nil {
		return nil, fmt.Errorf("render preopen_args_template %q: %w", tmpl, err)
	}
	return strings.Fields(b.String()), nil
}

// hashProgram fingerprints a program's request sequence so divergence
// records from the same synthesized program (across possibly repeated
// runs) share a stable key.
func hashProgram(p *program.Program) string {
	h := sha256.New()
	for _, req := range p.Requests {
		fmt.Fprintf(h, "%T", req)
		if call, ok := req.(program.CallRequest); ok {
			fmt.Fprintf(h, "#%d", call.Func.ID)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// programSnapshot is the JSON projection of a Program written alongside
// its run's divergences. It lists each request's shape only (the Decl's
// resource id or the called function's name), not its parameter values.
type programSnapshot struct {
	Requests []string `json:"requests"`
}

func writeProgramSnapshot(workspaceDir string, runIdx int, p *program.Program) error {
	snap := programSnapshot{Requests: make([]string, len(p.Requests))}
	for i, req := range p.Requests {
		switch r := req.(type) {
		case program.DeclRequest:
			snap.Requests[i] = fmt.Sprintf("decl(id=%d)", r.ResourceID)
		case program.CallRequest:
			snap.Requests[i] = fmt.Sprintf("call(%s)", r.Func.Name)
		default:
			panic("wasit: unreachable program.Request kind in writeProgramSnapshot")
		}
	}

	dir := filepath.Join(workspaceDir, "runs", strconv.Itoa(runIdx))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run directory %q: %w", dir, err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal program snapshot: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "program"), data, 0o644)
}
