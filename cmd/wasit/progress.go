package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wasit-fuzz/wasit/config"
	"github.com/wasit-fuzz/wasit/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	timeoutStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F2C94C"))

	crashStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	divergenceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// reporter is fed progress from the run loop in main.go and renders it,
// either as an interactive TUI or as plain stdout lines plus a
// per-run log file.
type reporter interface {
	RunStart(runIdx, totalRuns int)
	Step(runIdx int, step orchestrator.StepOutcome)
	RunDone(runIdx, divCount int)
	Close()
}

// newReporter picks the TUI when stdout is a terminal and --silent
// wasn't given.
func newReporter(profiles []config.RuntimeProfile, workspaceDir string, totalRuns int, silent bool) reporter {
	if !silent && term.IsTerminal(int(os.Stdout.Fd())) {
		return newTUIReporter(profiles, totalRuns)
	}
	return newPlainReporter(workspaceDir, silent)
}

// --- TUI reporter -----------------------------------------------------

type stepMsg struct {
	runIdx int
	step   orchestrator.StepOutcome
}

type runStartMsg struct {
	runIdx    int
	totalRuns int
}

type runDoneMsg struct {
	runIdx   int
	divCount int
}

type finishedMsg struct{}

type tuiReporter struct {
	prog *tea.Program
	done chan struct{}
}

func newTUIReporter(profiles []config.RuntimeProfile, totalRuns int) *tuiReporter {
	m := newProgressModel(profiles, totalRuns)
	p := tea.NewProgram(m)

	r := &tuiReporter{prog: p, done: make(chan struct{})}
	go func() {
		p.Run()
		close(r.done)
	}()
	return r
}

func (r *tuiReporter) RunStart(runIdx, totalRuns int) {
	r.prog.Send(runStartMsg{runIdx: runIdx, totalRuns: totalRuns})
}

func (r *tuiReporter) Step(runIdx int, step orchestrator.StepOutcome) {
	r.prog.Send(stepMsg{runIdx: runIdx, step: step})
}

func (r *tuiReporter) RunDone(runIdx, divCount int) {
	r.prog.Send(runDoneMsg{runIdx: runIdx, divCount: divCount})
}

func (r *tuiReporter) Close() {
	r.prog.Send(finishedMsg{})
	<-r.done
}

type progressModel struct {
	bar         progress.Model
	names       []string
	statuses    map[string]orchestrator.ChildOutcomeKind
	totalRuns   int
	currentRun  int
	divergences int
}

func newProgressModel(profiles []config.RuntimeProfile, totalRuns int) progressModel {
	names := make([]string, len(profiles))
	statuses := make(map[string]orchestrator.ChildOutcomeKind, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
		statuses[p.Name] = orchestrator.OutcomeOk
	}
	return progressModel{
		bar:       progress.New(progress.WithDefaultGradient()),
		names:     names,
		statuses:  statuses,
		totalRuns: totalRuns,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case runStartMsg:
		m.currentRun = msg.runIdx
		m.totalRuns = msg.totalRuns
		return m, m.bar.SetPercent(float64(m.currentRun) / float64(m.totalRuns))

	case stepMsg:
		for name, out := range msg.step.Outcomes {
			m.statuses[name] = out.Kind
		}

	case runDoneMsg:
		m.divergences += msg.divCount
		return m, m.bar.SetPercent(float64(m.currentRun+1) / float64(m.totalRuns))

	case finishedMsg:
		return m, tea.Quit

	case progress.FrameMsg:
		next, cmd := m.bar.Update(msg)
		m.bar = next.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("WASIT"))
	b.WriteString(fmt.Sprintf(" run %d/%d\n\n", m.currentRun+1, m.totalRuns))

	for _, name := range m.names {
		b.WriteString(formatStatus(name, m.statuses[name]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.bar.View())
	b.WriteString("\n\n")
	b.WriteString(divergenceStyle.Render(fmt.Sprintf("divergences: %d", m.divergences)))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("q quit"))

	return b.String()
}

func formatStatus(name string, kind orchestrator.ChildOutcomeKind) string {
	switch kind {
	case orchestrator.OutcomeOk:
		return name + ": " + okStyle.Render("ok")
	case orchestrator.OutcomeTimeout:
		return name + ": " + timeoutStyle.Render("timeout")
	case orchestrator.OutcomeCrash:
		return name + ": " + crashStyle.Render("crash")
	default:
		panic("main: unreachable ChildOutcomeKind in formatStatus")
	}
}

// --- plain reporter -----------------------------------------------------

// plainReporter is the --silent and non-TTY fallback: a line per run on
// stdout plus the required workspace/runs/<i>/progress.log.
type plainReporter struct {
	workspaceDir string
	silent       bool

	mu  sync.Mutex
	log *os.File
}

func newPlainReporter(workspaceDir string, silent bool) *plainReporter {
	return &plainReporter{workspaceDir: workspaceDir, silent: silent}
}

func (r *plainReporter) RunStart(runIdx, totalRuns int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.log != nil {
		r.log.Close()
	}
	dir := filepath.Join(r.workspaceDir, "runs", strconv.Itoa(runIdx))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "wasit: create run log dir: %v\n", err)
		return
	}
	f, err := os.Create(filepath.Join(dir, "progress.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "wasit: open progress log: %v\n", err)
		return
	}
	r.log = f

	if !r.silent {
		fmt.Printf("run %d/%d\n", runIdx+1, totalRuns)
	}
	fmt.Fprintf(f, "run %d/%d started\n", runIdx+1, totalRuns)
}

func (r *plainReporter) Step(runIdx int, step orchestrator.StepOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil {
		return
	}
	status := "ok"
	if step.Diverged {
		status = "DIVERGED"
	}
	fmt.Fprintf(r.log, "step %d: %s\n", step.Step, status)
}

func (r *plainReporter) RunDone(runIdx, divCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.silent {
		fmt.Printf("run %d done: %d divergence(s)\n", runIdx+1, divCount)
	}
	if r.log != nil {
		fmt.Fprintf(r.log, "run %d done: %d divergence(s)\n", runIdx+1, divCount)
	}
}

func (r *plainReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log != nil {
		r.log.Close()
		r.log = nil
	}
}
