package storage

import (
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/microenv/internal/profile"
)

// ExportData is the JSON form of a stored run. Values that JSON cannot
// represent, NaN and the infinities, are written as null.
type ExportData struct {
	RunMetadata
	Index   []*float64            `json:"r"`
	Columns map[string][]*float64 `json:"columns"`
	Par     string                `json:"par"`
}

func nullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v := v
		out[i] = &v
	}
	return out
}

func NewExportData(meta RunMetadata, table *profile.Table, par string) ExportData {
	data := ExportData{
		RunMetadata: meta,
		Index:       nullable(table.Index),
		Columns:     make(map[string][]*float64, len(table.Columns)),
		Par:         par,
	}
	for _, name := range table.Columns {
		values, _ := table.Column(name)
		data.Columns[name] = nullable(values)
	}
	return data
}

// ExportJSON writes the stored run runID to w.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	table, err := s.LoadTable(runID)
	if err != nil {
		return err
	}
	par, err := s.LoadPar(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(*meta, table, par))
}

// ExportCSV copies the stored profile table of runID to w.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	table, err := s.LoadTable(runID)
	if err != nil {
		return err
	}
	return table.WriteCSV(w)
}
