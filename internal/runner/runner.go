// Package runner spawns and supervises the external subprocesses moor
// depends on: short synchronous engine calls and the long-running
// devcontainer build.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ExitError is returned when a subprocess exits non-zero. It carries the
// captured output so failures can be reported verbatim.
type ExitError struct {
	Args   []string
	Code   int
	Stdout string
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.Code)
	if diag := strings.TrimSpace(e.Stderr); diag != "" {
		return msg + ": " + diag
	}
	if diag := strings.TrimSpace(e.Stdout); diag != "" {
		return msg + ": " + diag
	}
	return msg
}

// Runner executes external commands.
type Runner struct {
	logger *slog.Logger
}

// New creates a Runner.
func New(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes argv to completion and returns its stdout. A non-zero exit
// yields an *ExitError carrying both captured streams.
func (r *Runner) Run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	r.logger.Debug("exec", "cmd", argv[0], "args", argv[1:])

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{
				Args:   argv,
				Code:   exitErr.ExitCode(),
				Stdout: stdout.String(),
				Stderr: stderr.String(),
			}
		}
		return nil, fmt.Errorf("running %s: %w", argv[0], err)
	}
	return stdout.Bytes(), nil
}

// StartSpec describes an asynchronous subprocess invocation.
type StartSpec struct {
	// Argv is the executable and its arguments.
	Argv []string

	// Stderr receives the process error stream as it arrives, typically a
	// persistent log surface. May be nil.
	Stderr io.Writer

	// OnExit is invoked exactly once, after the process has exited and its
	// streams are drained, with the complete accumulated stdout. The
	// payload is a single JSON document that may arrive across several
	// writes, so partial chunks are never exposed.
	OnExit func(stdout []byte, err error)
}

// Start launches a long-running subprocess without blocking the caller.
// Returns an error only if the process could not be spawned; completion is
// reported through spec.OnExit.
func (r *Runner) Start(ctx context.Context, spec StartSpec) error {
	if len(spec.Argv) == 0 {
		return errors.New("empty command")
	}
	r.logger.Debug("spawn", "cmd", spec.Argv[0], "args", spec.Argv[1:])

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("piping stdout: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("piping stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", spec.Argv[0], err)
	}

	var stdout bytes.Buffer
	stderrTail := newTailWriter(8 << 10)
	stderrSink := io.Writer(stderrTail)
	if spec.Stderr != nil {
		stderrSink = io.MultiWriter(spec.Stderr, stderrTail)
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdout, stdoutPipe)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stderrSink, stderrPipe)
		return err
	})

	go func() {
		pumpErr := g.Wait()
		waitErr := cmd.Wait()

		var result error
		switch {
		case waitErr != nil:
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				result = &ExitError{
					Args:   spec.Argv,
					Code:   exitErr.ExitCode(),
					Stdout: stdout.String(),
					Stderr: stderrTail.String(),
				}
			} else {
				result = fmt.Errorf("waiting for %s: %w", spec.Argv[0], waitErr)
			}
		case pumpErr != nil:
			result = fmt.Errorf("reading %s output: %w", spec.Argv[0], pumpErr)
		}

		spec.OnExit(stdout.Bytes(), result)
	}()

	return nil
}

// tailWriter keeps the last n bytes written, for diagnostics on long
// streams.
type tailWriter struct {
	max int
	buf []byte
}

func newTailWriter(max int) *tailWriter {
	return &tailWriter{max: max}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if len(w.buf) > w.max {
		w.buf = w.buf[len(w.buf)-w.max:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	return string(w.buf)
}
