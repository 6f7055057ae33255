package internal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Runner abstracts running external tools so tests can inject a fake runner.
type Runner interface {
	// Run executes the command buffered with a hard timeout and returns
	// stdout and stderr. Errors carry an ErrKind.
	Run(ctx context.Context, name string, args []string, timeout time.Duration) (stdout, stderr []byte, err error)
	// Start launches the command streaming and returns its stdout pipe.
	// The process is killed when ctx is cancelled.
	Start(ctx context.Context, name string, args []string) (io.ReadCloser, ProcHandle, error)
	// StartWithInput is Start with the given reader wired to stdin.
	StartWithInput(ctx context.Context, name string, args []string, stdin io.Reader) (io.ReadCloser, ProcHandle, error)
}

// ProcHandle controls one started subprocess.
type ProcHandle interface {
	// Wait blocks until the process exits. Returns nil when the process was
	// deliberately killed: early termination of a pipe stage is a normal
	// teardown path, not an error.
	Wait() error
	// Kill force-terminates the whole process group.
	Kill()
	// StderrTail returns the last captured stderr bytes for diagnostics.
	StderrTail() string
}

// ExecRunner is the os/exec-backed Runner used in production.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, timeout time.Duration) ([]byte, []byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd)
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, errBuf.Bytes(), NewError(KindTimeout, fmt.Sprintf("%s exceeded %s", name, timeout))
	}
	if ctx.Err() != nil {
		return nil, errBuf.Bytes(), ctx.Err()
	}
	if err != nil {
		return nil, errBuf.Bytes(), &GatewayError{
			Kind:   KindProcessFailed,
			Detail: stderrTail(errBuf.String()),
			Err:    err,
		}
	}
	if len(bytes.TrimSpace(outBuf.Bytes())) == 0 {
		return nil, errBuf.Bytes(), NewError(KindEmptyOutput, fmt.Sprintf("%s exited 0 with no output", name))
	}
	return outBuf.Bytes(), errBuf.Bytes(), nil
}

func (ExecRunner) Start(ctx context.Context, name string, args []string) (io.ReadCloser, ProcHandle, error) {
	return startStreaming(ctx, name, args, nil)
}

func (ExecRunner) StartWithInput(ctx context.Context, name string, args []string, stdin io.Reader) (io.ReadCloser, ProcHandle, error) {
	return startStreaming(ctx, name, args, stdin)
}

func startStreaming(ctx context.Context, name string, args []string, stdin io.Reader) (io.ReadCloser, ProcHandle, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd)
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	tail := newTailBuffer(4096)
	cmd.Stderr = tail
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe for %s: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start %s: %w", name, err)
	}
	return stdout, &procHandle{cmd: cmd, tail: tail}, nil
}

func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	// Negative pid targets the process group created by Setpgid, so helper
	// children (python forks, muxers) die with the parent.
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

type procHandle struct {
	cmd      *exec.Cmd
	tail     *tailBuffer
	killMu   sync.Mutex
	killed   bool
	waitOnce sync.Once
	waitErr  error
}

func (h *procHandle) Kill() {
	h.killMu.Lock()
	h.killed = true
	h.killMu.Unlock()
	_ = killGroup(h.cmd)
}

func (h *procHandle) wasKilled() bool {
	h.killMu.Lock()
	defer h.killMu.Unlock()
	return h.killed
}

func (h *procHandle) Wait() error {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		if err != nil && !h.wasKilled() {
			h.waitErr = &GatewayError{
				Kind:   KindProcessFailed,
				Detail: stderrTail(h.tail.String()),
				Err:    err,
			}
		}
	})
	return h.waitErr
}

func (h *procHandle) StderrTail() string {
	return stderrTail(h.tail.String())
}

// stderrTail keeps the last few lines of stderr for error bodies and logs.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// tailBuffer is an io.Writer retaining only the last capacity bytes.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	cap int
}

func newTailBuffer(capacity int) *tailBuffer {
	return &tailBuffer{cap: capacity}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.cap {
		t.buf = t.buf[len(t.buf)-t.cap:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
