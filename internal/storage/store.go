// Package storage persists parsed runs under a base directory, one
// subdirectory per run.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/microenv/internal/profile"
)

const (
	MetadataFile = "metadata.json"
	ProfileFile  = "profiles.csv"
	ParFile      = "par.txt"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Dir() string {
	return s.baseDir
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was produced.
type RunInfo struct {
	Name      string             `json:"name"`
	Preset    string             `json:"preset,omitempty"`
	Params    map[string]float64 `json:"params"`
	BorMult   float64            `json:"bormult"`
	ITMax     int                `json:"itmax"`
	SlowC     float64            `json:"slowc"`
	Template  string             `json:"template"`
	Workspace string             `json:"workspace"`
	Duration  time.Duration      `json:"duration_ns"`
	// SolverError is set for runs kept despite a failing solver.
	SolverError string `json:"solver_error,omitempty"`
}

type RunMetadata struct {
	RunInfo
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Nodes     int            `json:"nodes"`
	Columns   []string       `json:"columns"`
	Meta      map[string]int `json:"meta_lengths"`
}

func (s *Store) newID(name string) string {
	if name == "" {
		name = "run"
	}
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	return fmt.Sprintf("%s_%d_%s", name, time.Now().Unix(), uuid.NewString()[:8])
}

// Save writes run under a new ID. A run that cannot be written completely is
// removed again.
func (s *Store) Save(info RunInfo, run *profile.Run) (_ string, err error) {
	runID := s.newID(info.Name)
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(runDir)
		}
	}()

	meta := RunMetadata{
		RunInfo:   info,
		ID:        runID,
		Timestamp: time.Now(),
		Nodes:     run.Table.Len(),
		Columns:   append([]string(nil), run.Table.Columns...),
		Meta:      make(map[string]int, len(run.Meta.Series)),
	}
	for name, values := range run.Meta.Series {
		meta.Meta[name] = len(values)
	}

	if err := writeJSON(filepath.Join(runDir, MetadataFile), meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, ProfileFile))
	if err != nil {
		return "", err
	}
	if err := run.Table.WriteCSV(csvFile); err != nil {
		csvFile.Close()
		return "", err
	}
	if err := csvFile.Close(); err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(runDir, ParFile), []byte(run.Meta.Par()), 0644); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable run, oldest first. A missing base directory
// holds no runs.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(s.path(runID, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", runID, err)
	}

	return &meta, nil
}

func (s *Store) LoadTable(runID string) (*profile.Table, error) {
	f, err := os.Open(s.path(runID, ProfileFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	return profile.ReadCSV(f)
}

func (s *Store) LoadPar(runID string) (string, error) {
	data, err := os.ReadFile(s.path(runID, ParFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return "", err
	}
	return string(data), nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: store %s is empty", ErrRunNotFound, s.baseDir)
	}
	return &runs[len(runs)-1], nil
}

func (s *Store) path(runID, name string) string {
	return filepath.Join(s.baseDir, filepath.Base(runID), name)
}
