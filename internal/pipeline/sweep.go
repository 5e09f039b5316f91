package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/san-kum/microenv/internal/params"
	"github.com/san-kum/microenv/internal/workspace"
	"go.uber.org/zap"
)

var ErrInvalidSweep = errors.New("pipeline: invalid sweep")

// Sweep varies one parameter linearly from Min to Max over Steps runs.
type Sweep struct {
	Name  string  `yaml:"name" json:"name"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
	Steps int     `yaml:"steps" json:"steps"`
}

// Values returns the parameter value of every step.
func (s Sweep) Values() []float64 {
	if s.Steps == 1 {
		return []float64{s.Min}
	}
	vals := make([]float64, s.Steps)
	step := (s.Max - s.Min) / float64(s.Steps-1)
	for i := range vals {
		vals[i] = s.Min + float64(i)*step
	}
	vals[len(vals)-1] = s.Max
	return vals
}

func (s Sweep) validate() error {
	if s.Steps < 1 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidSweep, s.Steps)
	}
	if !params.IsKey(s.Name) {
		return fmt.Errorf("%w: %q is not a sweepable parameter", ErrInvalidSweep, s.Name)
	}
	return nil
}

type SweepResult struct {
	Value float64
	// Set is the parameter set the step ran with.
	Set    params.Set
	Result *Result
}

// Sweep runs every step of sw in its own directory under opts.Workspace,
// one after another. It stops at the first failure and returns the results
// collected so far.
func (r *Runner) Sweep(ctx context.Context, base params.Set, opts Options, sw Sweep) ([]SweepResult, error) {
	if err := sw.validate(); err != nil {
		return nil, err
	}

	root, err := workspace.New(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if err := root.Ensure(); err != nil {
		return nil, fmt.Errorf("pipeline: prepare sweep workspace: %w", err)
	}

	vals := sw.Values()
	results := make([]SweepResult, 0, len(vals))
	for i, v := range vals {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		set, err := base.With(sw.Name, v)
		if err != nil {
			return results, err
		}

		stepOpts := opts
		stepOpts.Workspace = filepath.Join(root.Dir(), fmt.Sprintf("%s_%d", sw.Name, i))

		r.logger().Info("sweep step",
			zap.Int("step", i+1),
			zap.Int("of", len(vals)),
			zap.String("param", sw.Name),
			zap.Float64("value", v))

		res, err := r.Run(ctx, set, stepOpts)
		if err != nil {
			return results, fmt.Errorf("sweep step %d (%s=%g): %w", i+1, sw.Name, v, err)
		}
		results = append(results, SweepResult{Value: v, Set: set, Result: res})
	}
	return results, nil
}
