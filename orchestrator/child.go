package orchestrator

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"golang.org/x/sys/unix"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/wire"
)

// stderrTailLimit bounds how much of a crashed child's stderr is kept
// for a divergence report (§4.H).
const stderrTailLimit = 4096

// Child is one runtime under test: something that accepts a framed
// wire.Request and eventually produces a framed wire.Response, or dies
// trying (§4.G, §5).
type Child interface {
	Name() string
	Send(ctx context.Context, req wire.Request) (wire.Response, error)
	Kill() error
	StderrTail() string
}

// ProcessChild wraps an external runtime binary invoked as its own OS
// process (§4.G), communicating over stdin/stdout pipes. It runs in its
// own process group so a deadline can tear down a runtime that spawned
// its own children (grounded on the corpus's broad reliance on
// golang.org/x/sys/unix for POSIX process control).
type ProcessChild struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr *tailBuffer

	mu   sync.Mutex
	dead bool
}

// NewProcessChild starts bin with args, wiring its stdin/stdout to the
// executor wire protocol and capturing a bounded tail of its stderr.
func NewProcessChild(name, bin string, args ...string) (*ProcessChild, error) {
	cmd := exec.Command(bin, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errs.New(errs.PhaseOrchestrate, errs.KindProtocol).
			Detail("open stdin pipe for child %q", name).Cause(err).Build()
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.New(errs.PhaseOrchestrate, errs.KindProtocol).
			Detail("open stdout pipe for child %q", name).Cause(err).Build()
	}
	tail := newTailBuffer(stderrTailLimit)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, errs.New(errs.PhaseOrchestrate, errs.KindCrash).
			Detail("start child %q", name).Cause(err).Build()
	}

	return &ProcessChild{name: name, cmd: cmd, stdin: stdin, stdout: stdout, stderr: tail}, nil
}

func (c *ProcessChild) Name() string { return c.name }

func (c *ProcessChild) Send(ctx context.Context, req wire.Request) (wire.Response, error) {
	return sendFramed(ctx, c, c.stdin, c.stdout, req)
}

// Kill terminates the child's entire process group so runtimes that
// spawn their own children are cleaned up too (§5 "Cancellation is
// delivered by killing the child process").
func (c *ProcessChild) Kill() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return nil
	}
	c.dead = true

	pgid := c.cmd.Process.Pid
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
	return nil
}

func (c *ProcessChild) StderrTail() string { return c.stderr.String() }

// EmbeddedChild runs the executor wasm module in-process via wazero
// plus its wasi_snapshot_preview1 host module, wiring the request and
// response pipes as in-memory io.Pipes rather than OS pipes. This
// gives WASIT a runtime profile with no external binary dependency,
// following the same runtime-create/register-imports/instantiate
// sequence used to run WASI-backed wasm modules generally, with a flat
// preview1 import set in place of Component Model host imports.
type EmbeddedChild struct {
	name string

	runtime  wazero.Runtime
	stdin    *io.PipeWriter
	stdout   *io.PipeReader
	stderr   *tailBuffer
	done     chan struct{}
	runErr   error
	closeOne sync.Once
}

// NewEmbeddedChild compiles and starts wasmBytes (built for
// GOOS=wasip1) with preopenDir mounted as fd 3.
func NewEmbeddedChild(ctx context.Context, name string, wasmBytes []byte, preopenDir string) (*EmbeddedChild, error) {
	rt := wazero.NewRuntime(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, errs.New(errs.PhaseOrchestrate, errs.KindProtocol).
			Detail("instantiate wasi_snapshot_preview1 for child %q", name).Cause(err).Build()
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, errs.New(errs.PhaseOrchestrate, errs.KindProtocol).
			Detail("compile executor module for child %q", name).Cause(err).Build()
	}

	hostStdinR, hostStdinW := io.Pipe()
	hostStdoutR, hostStdoutW := io.Pipe()
	tail := newTailBuffer(stderrTailLimit)

	cfg := wazero.NewModuleConfig().
		WithStdin(hostStdinR).
		WithStdout(hostStdoutW).
		WithStderr(tail).
		WithFS(os.DirFS(preopenDir))

	ec := &EmbeddedChild{
		name:    name,
		runtime: rt,
		stdin:   hostStdinW,
		stdout:  hostStdoutR,
		stderr:  tail,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(ec.done)
		_, ec.runErr = rt.InstantiateModule(ctx, compiled, cfg)
		hostStdoutW.Close()
	}()

	return ec, nil
}

func (c *EmbeddedChild) Name() string { return c.name }

func (c *EmbeddedChild) Send(ctx context.Context, req wire.Request) (wire.Response, error) {
	return sendFramed(ctx, c, c.stdin, c.stdout, req)
}

func (c *EmbeddedChild) Kill() error {
	c.closeOne.Do(func() {
		c.stdin.Close()
		c.stdout.Close()
		c.runtime.Close(context.Background())
	})
	return nil
}

func (c *EmbeddedChild) StderrTail() string { return c.stderr.String() }

// sendFramed writes req and reads back one response, treating ctx
// cancellation as a Timeout outcome that immediately kills the child
// so the blocked reader unblocks (§5 "Cancellation is delivered by
// killing the child process").
func sendFramed(ctx context.Context, c Child, w io.Writer, r io.Reader, req wire.Request) (wire.Response, error) {
	type result struct {
		resp wire.Response
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		if err := wire.WriteFrame(w, wire.EncodeRequest(req)); err != nil {
			ch <- result{err: err}
			return
		}
		body, err := wire.ReadFrame(r)
		if err != nil {
			ch <- result{err: err}
			return
		}
		resp, err := wire.DecodeResponse(body)
		ch <- result{resp: resp, err: err}
	}()

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-ctx.Done():
		_ = c.Kill()
		return nil, errs.New(errs.PhaseOrchestrate, errs.KindTimeout).
			Detail("child %q did not respond before deadline", c.Name()).Cause(ctx.Err()).Build()
	}
}

// tailBuffer keeps only the last limit bytes written to it, for
// capturing a crashed child's stderr without unbounded growth.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if excess := t.buf.Len() - t.limit; excess > 0 {
		t.buf.Next(excess)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
