package internal

import (
	"context"
	"io"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestExecRunnerRun(t *testing.T) {
	var r ExecRunner
	stdout, _, err := r.Run(context.Background(), "sh", []string{"-c", "echo hello"}, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(stdout)) != "hello" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	var r ExecRunner
	start := time.Now()
	_, _, err := r.Run(context.Background(), "sh", []string{"-c", "sleep 10"}, 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", KindOf(err))
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout did not kill promptly: %s", elapsed)
	}
}

func TestExecRunnerNonZeroExitCarriesStderr(t *testing.T) {
	var r ExecRunner
	_, _, err := r.Run(context.Background(), "sh", []string{"-c", "echo 'ERROR: boom' >&2; exit 3"}, 5*time.Second)
	if err == nil {
		t.Fatal("expected error for exit 3")
	}
	if KindOf(err) != KindProcessFailed {
		t.Fatalf("expected KindProcessFailed, got %v", KindOf(err))
	}
	if !strings.Contains(ErrDetail(err), "ERROR: boom") {
		t.Errorf("detail = %q, want stderr tail", ErrDetail(err))
	}
}

func TestExecRunnerEmptyOutput(t *testing.T) {
	var r ExecRunner
	_, _, err := r.Run(context.Background(), "sh", []string{"-c", "true"}, 5*time.Second)
	if err == nil || KindOf(err) != KindEmptyOutput {
		t.Fatalf("expected KindEmptyOutput, got %v", err)
	}
}

func TestExecRunnerStartStreams(t *testing.T) {
	var r ExecRunner
	out, h, err := r.Start(context.Background(), "sh", []string{"-c", "printf abc"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	data, err := io.ReadAll(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("stdout = %q", data)
	}
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestExecRunnerContextCancelKillsProcess(t *testing.T) {
	var r ExecRunner
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, h, err := r.Start(ctx, "sh", []string{"-c", "sleep 10"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer out.Close()
	pid := h.(*procHandle).cmd.Process.Pid

	cancel()
	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process still running 2s after context cancellation")
	}
	if err := syscall.Kill(pid, 0); err != syscall.ESRCH {
		t.Fatalf("expected pid %d to be gone after cancellation, kill probe = %v", pid, err)
	}
}

func TestExecRunnerKillIsNotAnError(t *testing.T) {
	var r ExecRunner
	out, h, err := r.Start(context.Background(), "sh", []string{"-c", "sleep 10"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer out.Close()
	time.Sleep(50 * time.Millisecond)
	h.Kill()
	if err := h.Wait(); err != nil {
		t.Fatalf("deliberate kill should wait clean, got %v", err)
	}
}

func TestExecRunnerStartWithInput(t *testing.T) {
	var r ExecRunner
	out, h, err := r.StartWithInput(context.Background(), "sh", []string{"-c", "cat"}, strings.NewReader("piped data"))
	if err != nil {
		t.Fatalf("StartWithInput: %v", err)
	}
	data, err := io.ReadAll(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "piped data" {
		t.Errorf("stdout = %q", data)
	}
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestPipelineBrokenPipeIsNormalTeardown(t *testing.T) {
	var r ExecRunner
	// The sink takes a prefix and exits; the source is then killed. That is
	// the expected shape of a bounded-duration transcode.
	p, err := StartPipeline(context.Background(), r,
		"sh", []string{"-c", "while true; do printf xxxxxxxxxx; done"},
		"sh", []string{"-c", "head -c 20"})
	if err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}
	data, err := io.ReadAll(p.Out())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != 20 {
		t.Errorf("sink output = %d bytes, want 20", len(data))
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait after early sink exit: %v", err)
	}
}

func TestStderrTailKeepsLastLines(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, "line")
	}
	lines = append(lines, "final")
	got := stderrTail(strings.Join(lines, "\n"))
	if !strings.HasSuffix(got, "final") {
		t.Errorf("tail = %q", got)
	}
	if n := strings.Count(got, "\n"); n != 4 {
		t.Errorf("tail has %d newlines, want 4", n)
	}
	if stderrTail("   \n  ") != "" {
		t.Error("whitespace-only stderr should yield empty tail")
	}
}
