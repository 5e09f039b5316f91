package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/san-kum/microenv/internal/params"
	"github.com/san-kum/microenv/internal/pipeline"
	"github.com/san-kum/microenv/internal/render"
	"github.com/san-kum/microenv/internal/solver"
	"gopkg.in/yaml.v3"
)

const (
	DefaultName     = "run"
	DefaultTemplate = "resources/solvde42_py_temp.c"
	DefaultITMax    = render.DefaultITMax
	DefaultSlowC    = render.DefaultSlowC
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Name               string        `yaml:"name"`
	Template           string        `yaml:"template"`
	Workspace          string        `yaml:"workspace"`
	Source             string        `yaml:"source"`
	AuxSource          string        `yaml:"aux_source"`
	Compiler           string        `yaml:"compiler"`
	ITMax              int           `yaml:"itmax"`
	SlowC              float64       `yaml:"slowc"`
	Placeholders       string        `yaml:"placeholders"`
	Timeout            time.Duration `yaml:"timeout"`
	AllowSolverFailure bool          `yaml:"allow_solver_failure"`
	Params             params.Inputs `yaml:"params"`
	Log                LogConfig     `yaml:"log"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:         DefaultName,
		Template:     DefaultTemplate,
		Workspace:    pipeline.DefaultWorkspace,
		Source:       pipeline.DefaultSource,
		AuxSource:    pipeline.DefaultAuxSource,
		Compiler:     solver.DefaultCompiler,
		ITMax:        DefaultITMax,
		SlowC:        DefaultSlowC,
		Placeholders: render.Strict.String(),
		Params:       Presets[DefaultPreset].Params,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load overlays the YAML file at path on DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Template == "" {
		errs = append(errs, errors.New("template is required"))
	}
	if c.Workspace == "" {
		errs = append(errs, errors.New("workspace is required"))
	}
	if c.ITMax <= 0 {
		errs = append(errs, fmt.Errorf("itmax must be positive, got %d", c.ITMax))
	}
	if c.SlowC <= 0 {
		errs = append(errs, fmt.Errorf("slowc must be positive, got %g", c.SlowC))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if _, err := render.ParseMode(c.Placeholders); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) ParamSet() params.Set {
	return params.New(c.Params)
}

func (c *Config) Controls() render.Controls {
	return render.Controls{ITMax: c.ITMax, SlowC: c.SlowC}
}

// Options converts the run settings for the pipeline. Call Validate first;
// an unknown placeholder mode falls back to strict.
func (c *Config) Options() pipeline.Options {
	mode, err := render.ParseMode(c.Placeholders)
	if err != nil {
		mode = render.Strict
	}
	return pipeline.Options{
		Workspace:          c.Workspace,
		Template:           c.Template,
		Source:             c.Source,
		AuxSource:          c.AuxSource,
		Controls:           c.Controls(),
		Mode:               mode,
		AllowSolverFailure: c.AllowSolverFailure,
	}
}

// ApplyPreset replaces the parameter inputs with the named preset.
func (c *Config) ApplyPreset(name string) error {
	p := GetPreset(name)
	if p == nil {
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	c.Params = p.Params
	return nil
}
