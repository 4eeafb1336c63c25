// Package toolchain runs the external compiler and binding generator.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"expandinator/internal/logging"
)

// Command is one external tool invocation.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	Env    []string // appended to the current environment
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a successful invocation.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ExitError reports a tool that ran and exited non-zero.
type ExitError struct {
	Command  Command
	ExitCode int
	Stderr   string // tail of standard error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Executor runs commands. Tests substitute a recording implementation.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// DirectExecutor runs commands on the host with os/exec.
type DirectExecutor struct {
	Timeout        time.Duration
	MaxOutputBytes int
}

// NewDirectExecutor creates an executor with a per-command timeout.
func NewDirectExecutor(timeout time.Duration) *DirectExecutor {
	return &DirectExecutor{Timeout: timeout, MaxOutputBytes: 1 << 20}
}

// Execute runs cmd and waits for it. A non-zero exit is an *ExitError.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	logging.Toolchain("running %s", cmd)
	if cmd.Dir != "" {
		logging.ToolchainDebug("working directory %s", cmd.Dir)
	}

	execCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Args...)
	execCmd.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	execCmd.Stdout = &limitedWriter{w: &stdoutBuf, max: e.MaxOutputBytes}
	execCmd.Stderr = &limitedWriter{w: &stderrBuf, max: e.MaxOutputBytes}

	start := time.Now()
	err := execCmd.Run()
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%s killed after %s: %w", cmd, e.Timeout, execCtx.Err())
		case errors.Is(execCtx.Err(), context.Canceled):
			return nil, fmt.Errorf("%s canceled: %w", cmd, execCtx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logging.ToolchainDebug("%s exited %d after %v", cmd.Binary, exitErr.ExitCode(), result.Duration)
			return nil, &ExitError{Command: cmd, ExitCode: exitErr.ExitCode(), Stderr: tail(result.Stderr, 2048)}
		}
		return nil, fmt.Errorf("failed to run %s: %w", cmd, err)
	}

	logging.ToolchainDebug("%s finished in %v", cmd.Binary, result.Duration)
	return result, nil
}

// tail returns at most n trailing bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}

// limitedWriter keeps the first max bytes and discards the rest.
type limitedWriter struct {
	w         io.Writer
	max       int
	written   int
	discarded int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.max <= 0 {
		return lw.w.Write(p)
	}
	remaining := lw.max - lw.written
	if remaining <= 0 {
		lw.discarded += len(p)
		return len(p), nil
	}
	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
		lw.discarded += len(p) - remaining
	}
	n, err := lw.w.Write(toWrite)
	lw.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}
