package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// maxStderr bounds how much of a failing command's stderr ends up in the error.
const maxStderr = 2048

// Executor runs external commands such as ffmpeg and ffprobe.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
}

type implExecutor struct{}

func New() Executor {
	return &implExecutor{}
}

// Execute runs name with args and returns its stdout.
func (e *implExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	cmdPath, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("command '%s' not found: %w", name, err)
	}

	cmd := exec.CommandContext(ctx, cmdPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := tail(strings.TrimSpace(stderr.String()), maxStderr)
		if stderrStr != "" {
			return "", fmt.Errorf("command '%s' failed: %w\nstderr: %s", name, err, stderrStr)
		}
		return "", fmt.Errorf("command '%s' failed: %w", name, err)
	}

	return stdout.String(), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
