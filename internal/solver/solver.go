// Package solver builds the generated solver source and runs the resulting
// executable as external processes.
package solver

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCompiler   = "gcc"
	DefaultExecutable = "a.out"
)

// Invoker compiles a solver source file and executes it, blocking until the
// solver exits.
type Invoker struct {
	Compiler   string
	Flags      []string
	Executable string
	// Timeout bounds build and run together. Zero means no limit.
	Timeout  time.Duration
	Executor Executor
	Logger   *zap.Logger
}

func New(logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		Compiler:   DefaultCompiler,
		Flags:      []string{"-lm"},
		Executable: DefaultExecutable,
		Executor:   ExecExecutor{},
		Logger:     logger,
	}
}

func (inv *Invoker) BuildCommand(dir, source string) Command {
	args := append([]string{source}, inv.Flags...)
	args = append(args, "-o", inv.executable())
	return Command{Binary: inv.compiler(), Arguments: args, Dir: dir}
}

func (inv *Invoker) RunCommand(dir string) Command {
	return Command{Binary: "./" + inv.executable(), Dir: dir}
}

// Invoke builds source inside dir and runs the produced executable there.
// The results of every stage that ran are returned. A stage that exits
// non-zero or is killed yields a *ProcessError; a failed build skips the run.
func (inv *Invoker) Invoke(ctx context.Context, dir, source string) ([]*Result, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	results := make([]*Result, 0, 2)

	build, err := inv.stage(ctx, StageBuild, inv.BuildCommand(dir, source))
	if err != nil {
		return results, err
	}
	results = append(results, build)
	if !build.OK() {
		return results, &ProcessError{Result: build, Err: ErrBuildFailed}
	}

	run, err := inv.stage(ctx, StageRun, inv.RunCommand(dir))
	if err != nil {
		return results, err
	}
	results = append(results, run)
	if !run.OK() {
		return results, &ProcessError{Result: run, Err: ErrSolverFailed}
	}
	return results, nil
}

func (inv *Invoker) stage(ctx context.Context, stage Stage, cmd Command) (*Result, error) {
	log := inv.logger().With(zap.String("stage", string(stage)))
	log.Debug("starting process", zap.String("cmd", cmd.String()), zap.String("dir", cmd.Dir))

	res, err := inv.executor().Execute(ctx, cmd)
	if err != nil {
		log.Error("process could not be started", zap.Error(err))
		return nil, err
	}
	res.Stage = stage

	fields := []zap.Field{
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
	}
	if res.OK() {
		log.Info("process finished", fields...)
	} else {
		if res.Killed {
			fields = append(fields, zap.String("reason", res.KillReason))
		}
		log.Warn("process failed", append(fields, zap.String("stderr", firstLine(res.Stderr)))...)
	}
	return res, nil
}

func (inv *Invoker) compiler() string {
	if inv.Compiler == "" {
		return DefaultCompiler
	}
	return inv.Compiler
}

func (inv *Invoker) executable() string {
	if inv.Executable == "" {
		return DefaultExecutable
	}
	return inv.Executable
}

func (inv *Invoker) executor() Executor {
	if inv.Executor == nil {
		return ExecExecutor{}
	}
	return inv.Executor
}

func (inv *Invoker) logger() *zap.Logger {
	if inv.Logger == nil {
		return zap.NewNop()
	}
	return inv.Logger
}
