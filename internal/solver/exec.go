package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long output pipes are drained after a kill.
const waitDelay = time.Second

type Stage string

const (
	StageBuild Stage = "build"
	StageRun   Stage = "run"
)

// Command is one external process invocation.
type Command struct {
	Binary    string
	Arguments []string
	Dir       string
}

func (c Command) String() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// Result is the outcome of a finished process. A non-zero exit is reported
// here, not as an error from the Executor.
type Result struct {
	Stage      Stage
	Command    Command
	ExitCode   int
	Stdout     string
	Stderr     string
	StartedAt  time.Time
	Duration   time.Duration
	Killed     bool
	Timeout    bool
	KillReason string
}

func (r *Result) OK() bool {
	return !r.Killed && r.ExitCode == 0
}

// Executor runs a command to completion.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Result, error)
}

// ExecExecutor runs commands as host processes.
type ExecExecutor struct{}

func (ExecExecutor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("solver: binary is required")
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Arguments...)
	c.Dir = cmd.Dir
	c.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	result := &Result{
		Command:   cmd,
		ExitCode:  -1,
		StartedAt: time.Now(),
	}
	err := c.Run()
	result.Duration = time.Since(result.StartedAt)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Killed = true
		result.Timeout = true
		result.KillReason = "deadline exceeded"
		return result, nil
	case errors.Is(ctx.Err(), context.Canceled):
		result.Killed = true
		result.KillReason = "context canceled"
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode < 0 {
			result.Killed = true
			result.KillReason = exitErr.String()
		}
		return result, nil
	}
	return result, fmt.Errorf("solver: start %s: %w", cmd.Binary, err)
}
