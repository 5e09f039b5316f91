package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/microenv/internal/params"
	"github.com/san-kum/microenv/internal/render"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ITMax != 400 {
		t.Errorf("expected itmax 400, got %d", cfg.ITMax)
	}
	if cfg.SlowC != 0.3 {
		t.Errorf("expected slowc 0.3, got %f", cfg.SlowC)
	}
	if cfg.Workspace != "./py_run/" {
		t.Errorf("expected workspace ./py_run/, got %s", cfg.Workspace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultPresetBoron(t *testing.T) {
	set := DefaultConfig().ParamSet()

	got, _ := set.Get(params.BorTBulk)
	if math.Abs(got-2055.086) > 1e-6 {
		t.Errorf("expected BORTBULK 2055.086, got %f", got)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := `
name: sweep-a
slowc: 0.1
timeout: 90s
placeholders: lenient
params:
  radius: 300
  salinity: 35
  bormult: 1
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Name != "sweep-a" {
		t.Errorf("expected name sweep-a, got %s", cfg.Name)
	}
	if cfg.ITMax != 400 {
		t.Errorf("expected default itmax to survive, got %d", cfg.ITMax)
	}
	if cfg.SlowC != 0.1 {
		t.Errorf("expected slowc 0.1, got %f", cfg.SlowC)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %s", cfg.Timeout)
	}
	if cfg.Params.Radius != 300 {
		t.Errorf("expected radius 300, got %f", cfg.Params.Radius)
	}
	if cfg.Options().Mode != render.Lenient {
		t.Errorf("expected lenient mode, got %s", cfg.Options().Mode)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Minute
	cfg.Params.Temp = 18

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Timeout != cfg.Timeout || loaded.Params != cfg.Params {
		t.Errorf("loaded config differs: %+v", loaded)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"itmax", func(c *Config) { c.ITMax = 0 }},
		{"slowc", func(c *Config) { c.SlowC = -1 }},
		{"template", func(c *Config) { c.Template = "" }},
		{"workspace", func(c *Config) { c.Workspace = "" }},
		{"timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"placeholders", func(c *Config) { c.Placeholders = "sloppy" }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.modify(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
	}
}

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowSolverFailure = true
	cfg.ITMax = 800

	opts := cfg.Options()
	if opts.Controls.ITMax != 800 || opts.Controls.SlowC != 0.3 {
		t.Errorf("unexpected controls %+v", opts.Controls)
	}
	if !opts.AllowSolverFailure {
		t.Error("expected AllowSolverFailure to carry over")
	}
	if opts.Template != DefaultTemplate {
		t.Errorf("expected template %s, got %s", DefaultTemplate, opts.Template)
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset("forambord")
	if p == nil {
		t.Fatal("expected preset, got nil")
	}
	if p.Params.PHBulk != 7.623 {
		t.Errorf("expected pH 7.623, got %f", p.Params.PHBulk)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	expected := []string{"default", "forambord", "forambord2", "foramw"}
	if len(names) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, names)
		}
	}
}

func TestApplyPreset(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyPreset("foramw"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if cfg.Params.Radius != 200 {
		t.Errorf("expected radius 200, got %f", cfg.Params.Radius)
	}
	if err := cfg.ApplyPreset("nope"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
