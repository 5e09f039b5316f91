// Package pipeline drives one solver run end to end: render the model
// source, prepare the workspace, build and run the solver, then parse what it
// wrote.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/microenv/internal/params"
	"github.com/san-kum/microenv/internal/profile"
	"github.com/san-kum/microenv/internal/render"
	"github.com/san-kum/microenv/internal/solver"
	"github.com/san-kum/microenv/internal/workspace"
	"go.uber.org/zap"
)

const (
	DefaultWorkspace = "./py_run/"
	DefaultSource    = "solvde42_py_run.c"
	DefaultAuxSource = "resources/nrutil.c"
)

type Options struct {
	// Workspace is created with a single mkdir; its parent must exist.
	Workspace string
	// Template is read before the working directory changes.
	Template string
	// Source is the file name the rendered model gets inside the workspace.
	Source    string
	AuxSource string
	Controls  render.Controls
	Mode      render.Mode
	// AllowSolverFailure parses the workspace even when the build or the
	// solver exits non-zero.
	AllowSolverFailure bool
}

func DefaultOptions() Options {
	return Options{
		Workspace: DefaultWorkspace,
		Source:    DefaultSource,
		AuxSource: DefaultAuxSource,
		Controls:  render.DefaultControls(),
		Mode:      render.Strict,
	}
}

// Result is everything a run produced.
type Result struct {
	Run       *profile.Run
	Report    render.Report
	Processes []*solver.Result
	Workspace string
	// SolverErr is set when the solver failed and AllowSolverFailure let the
	// run continue.
	SolverErr error
	Duration  time.Duration
}

type Runner struct {
	Invoker *solver.Invoker
	Logger  *zap.Logger
}

func New(inv *solver.Invoker, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if inv == nil {
		inv = solver.New(logger)
	}
	return &Runner{Invoker: inv, Logger: logger}
}

func (r *Runner) Run(ctx context.Context, set params.Set, opts Options) (*Result, error) {
	start := time.Now()
	log := r.logger().With(zap.String("workspace", opts.Workspace))

	if opts.Template == "" {
		return nil, errors.New("pipeline: no template given")
	}
	source := opts.Source
	if source == "" {
		source = DefaultSource
	}

	tmpl, err := render.Load(opts.Template)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if err := ws.Ensure(); err != nil {
		return nil, fmt.Errorf("pipeline: prepare workspace: %w", err)
	}

	report, err := render.RenderFile(ws.Path(source), tmpl, set, opts.Controls, opts.Mode)
	if err != nil {
		return nil, err
	}
	if len(report.Unresolved) > 0 {
		log.Warn("placeholders left in rendered source", zap.Strings("names", report.Unresolved))
	}
	if len(report.Unused) > 0 {
		log.Debug("parameters not referenced by template", zap.Strings("names", report.Unused))
	}

	if opts.AuxSource != "" {
		copied, err := ws.Stage(opts.AuxSource)
		if err != nil {
			return nil, err
		}
		log.Debug("aux source", zap.String("file", opts.AuxSource), zap.Bool("copied", copied))
	}

	res := &Result{Report: report, Workspace: ws.Dir()}

	var invokeErr error
	err = ws.Within(func() error {
		res.Processes, invokeErr = r.invoker().Invoke(ctx, ws.Dir(), source)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if invokeErr != nil {
		var pe *solver.ProcessError
		if !opts.AllowSolverFailure || !errors.As(invokeErr, &pe) {
			return nil, invokeErr
		}
		log.Warn("solver failed, parsing workspace anyway", zap.Error(invokeErr))
		res.SolverErr = invokeErr
	}

	run, err := profile.ParseDir(ws.Dir())
	if err != nil {
		return nil, errors.Join(res.SolverErr, err)
	}
	res.Run = run
	res.Duration = time.Since(start)

	log.Info("run complete",
		zap.Int("nodes", run.Table.Len()),
		zap.Int("columns", len(run.Table.Columns)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (r *Runner) invoker() *solver.Invoker {
	if r.Invoker == nil {
		return solver.New(r.logger())
	}
	return r.Invoker
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
