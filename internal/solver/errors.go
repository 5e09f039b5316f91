package solver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBuildFailed indicates the generated source did not compile.
	ErrBuildFailed = errors.New("solver: build failed")

	// ErrSolverFailed indicates the compiled solver exited non-zero or was killed.
	ErrSolverFailed = errors.New("solver: run failed")

	// ErrTimeout indicates a stage was killed because the invocation timed out.
	ErrTimeout = errors.New("solver: timed out")
)

// ProcessError carries the result of the stage that failed.
type ProcessError struct {
	Result *Result
	Err    error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Result.Killed {
		fmt.Fprintf(&b, " (%s)", e.Result.KillReason)
	} else {
		fmt.Fprintf(&b, " (exit %d)", e.Result.ExitCode)
	}
	if msg := firstLine(e.Result.Stderr); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

func (e *ProcessError) Unwrap() []error {
	if e.Result.Killed && e.Result.Timeout {
		return []error{e.Err, ErrTimeout}
	}
	return []error{e.Err}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
