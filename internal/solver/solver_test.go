package solver

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type fakeExecutor struct {
	calls   []Command
	results map[string]*Result
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[cmd.Binary]; ok {
		r.Command = cmd
		return r, nil
	}
	return &Result{Command: cmd}, nil
}

func TestInvokeBuildsThenRuns(t *testing.T) {
	fake := &fakeExecutor{}
	inv := New(nil)
	inv.Executor = fake

	results, err := inv.Invoke(context.Background(), "/ws", "solvde42_py_run.c")
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Stage != StageBuild || results[1].Stage != StageRun {
		t.Errorf("unexpected stages %s, %s", results[0].Stage, results[1].Stage)
	}

	build := fake.calls[0]
	if build.String() != "gcc solvde42_py_run.c -lm -o a.out" {
		t.Errorf("unexpected build command %q", build.String())
	}
	if build.Dir != "/ws" {
		t.Errorf("expected build in /ws, got %s", build.Dir)
	}
	run := fake.calls[1]
	if run.Binary != "./a.out" || run.Dir != "/ws" {
		t.Errorf("unexpected run command %+v", run)
	}
}

func TestInvokeBuildFailureSkipsRun(t *testing.T) {
	fake := &fakeExecutor{results: map[string]*Result{
		"gcc": {ExitCode: 1, Stderr: "py_run.c:12: error: expected expression before '*' token\nmore"},
	}}
	inv := New(nil)
	inv.Executor = fake

	results, err := inv.Invoke(context.Background(), "/ws", "py_run.c")
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if len(fake.calls) != 1 {
		t.Errorf("run stage should be skipped, got %d calls", len(fake.calls))
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}

	var perr *ProcessError
	if !errors.As(err, &perr) {
		t.Fatal("expected *ProcessError")
	}
	if perr.Result.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", perr.Result.ExitCode)
	}
	if !strings.Contains(err.Error(), "expected expression") || strings.Contains(err.Error(), "more") {
		t.Errorf("error should carry the first stderr line: %q", err.Error())
	}
}

func TestInvokeSolverFailure(t *testing.T) {
	fake := &fakeExecutor{results: map[string]*Result{
		"./a.out": {ExitCode: 139},
	}}
	inv := New(nil)
	inv.Executor = fake

	_, err := inv.Invoke(context.Background(), "/ws", "py_run.c")
	if !errors.Is(err, ErrSolverFailed) {
		t.Fatalf("expected ErrSolverFailed, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("plain failure should not match ErrTimeout")
	}
}

func TestInvokeTimeoutKill(t *testing.T) {
	fake := &fakeExecutor{results: map[string]*Result{
		"./a.out": {Killed: true, Timeout: true, KillReason: "deadline exceeded", ExitCode: -1},
	}}
	inv := New(nil)
	inv.Executor = fake

	_, err := inv.Invoke(context.Background(), "/ws", "py_run.c")
	if !errors.Is(err, ErrSolverFailed) || !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrSolverFailed and ErrTimeout, got %v", err)
	}
}

func TestInvokeExecutorError(t *testing.T) {
	boom := errors.New("no such compiler")
	inv := New(nil)
	inv.Executor = &fakeExecutor{err: boom}

	results, err := inv.Invoke(context.Background(), "/ws", "py_run.c")
	if !errors.Is(err, boom) {
		t.Fatalf("expected executor error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestCustomCompiler(t *testing.T) {
	inv := &Invoker{Compiler: "clang", Flags: []string{"-O2", "-lm"}, Executable: "solver"}
	cmd := inv.BuildCommand("/ws", "run.c")
	if cmd.String() != "clang run.c -O2 -lm -o solver" {
		t.Errorf("unexpected build command %q", cmd.String())
	}
	if inv.RunCommand("/ws").Binary != "./solver" {
		t.Errorf("unexpected run binary %q", inv.RunCommand("/ws").Binary)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecExecutor(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireShell(t)

	dir := t.TempDir()
	tests := []struct {
		name     string
		script   string
		exitCode int
		stdout   string
		stderr   string
	}{
		{"success", "echo hello", 0, "hello\n", ""},
		{"non-zero", "echo bad >&2; exit 3", 3, "", "bad\n"},
		{"pwd", "pwd > /dev/null", 0, "", ""},
	}

	for _, tt := range tests {
		res, err := ExecExecutor{}.Execute(context.Background(), Command{
			Binary:    "sh",
			Arguments: []string{"-c", tt.script},
			Dir:       dir,
		})
		if err != nil {
			t.Fatalf("%s: execute failed: %v", tt.name, err)
		}
		if res.ExitCode != tt.exitCode {
			t.Errorf("%s: expected exit %d, got %d", tt.name, tt.exitCode, res.ExitCode)
		}
		if res.Stdout != tt.stdout || res.Stderr != tt.stderr {
			t.Errorf("%s: unexpected output %q / %q", tt.name, res.Stdout, res.Stderr)
		}
		if res.Killed {
			t.Errorf("%s: should not be killed", tt.name)
		}
	}
}

func TestExecExecutorTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := ExecExecutor{}.Execute(ctx, Command{Binary: "sh", Arguments: []string{"-c", "exec sleep 5"}})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !res.Killed || !res.Timeout {
		t.Errorf("expected timeout kill, got %+v", res)
	}
	if res.OK() {
		t.Error("killed process should not be OK")
	}
}

func TestExecExecutorMissingBinary(t *testing.T) {
	_, err := ExecExecutor{}.Execute(context.Background(), Command{Binary: "definitely-not-a-compiler-xyz"})
	if err == nil {
		t.Fatal("expected start error")
	}
}

func TestInvokerTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireShell(t)

	inv := New(nil)
	inv.Compiler = "sh"
	inv.Flags = []string{"exec sleep 5"}
	inv.Timeout = 50 * time.Millisecond

	_, err := inv.Invoke(context.Background(), t.TempDir(), "-c")
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected build timeout, got %v", err)
	}
}
