package rclone

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/harupipipipi/mcmultidrive/pkg/logging"
)

// Runner executes one rclone invocation and returns its standard output.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// StreamRunner is a Runner that can hand over rclone's log lines as they
// are written.
type StreamRunner interface {
	Runner
	// RunStream calls onLine for each stderr line on the calling goroutine
	// and returns standard output once rclone exits.
	RunStream(ctx context.Context, onLine func(string), args ...string) ([]byte, error)
}

// errorTailLines is how much of stderr an error message carries.
const errorTailLines = 3

// ExecRunner runs the rclone binary.
type ExecRunner struct {
	Binary string
	Log    *logging.Logger
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	hideWindow(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log().Debug("rclone", map[string]any{"args": strings.Join(args, " ")})
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start rclone %s: %w", r.Binary, err)
	}
	if err := cmd.Wait(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, lastLines(stderr.String(), errorTailLines))
	}
	return stdout.Bytes(), nil
}

// RunStream implements StreamRunner.
func (r *ExecRunner) RunStream(ctx context.Context, onLine func(string), args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	hideWindow(cmd)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("rclone stderr: %w", err)
	}

	r.log().Debug("rclone", map[string]any{"args": strings.Join(args, " "), "stream": true})
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start rclone %s: %w", r.Binary, err)
	}

	tail := make([]string, 0, errorTailLines)
	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if len(tail) == errorTailLines {
			tail = tail[1:]
		}
		tail = append(tail, line)
		onLine(line)
	}
	// Drain what the scanner gave up on; Wait must follow the last read.
	io.Copy(io.Discard, stderr)

	if err := cmd.Wait(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, strings.Join(tail, " | "))
	}
	return stdout.Bytes(), nil
}

func (r *ExecRunner) log() *logging.Logger {
	if r.Log == nil {
		return logging.Global()
	}
	return r.Log
}

// Version returns the first line of `rclone version`.
func Version(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, "version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
