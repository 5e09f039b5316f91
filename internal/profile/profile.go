// Package profile splits imported solver output into a per-node table indexed
// by the radial coordinate r and a metadata mapping for everything else.
package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/san-kum/microenv/internal/output"
)

// IndexField is the radial coordinate every node field is aligned with.
const IndexField = "r"

var ErrNoIndex = fmt.Errorf("profile: no %q field: %w", IndexField, output.ErrMissingField)

var ErrColumnLength = errors.New("profile: column length does not match index")

type Kind int

const (
	MetaField Kind = iota
	NodeField
)

func (k Kind) String() string {
	if k == NodeField {
		return "node"
	}
	return "meta"
}

// Classify decides where a series of the given length belongs when the run
// has n radial nodes. Only a series of exactly n values is a node field.
func Classify(length, n int) Kind {
	if length == n {
		return NodeField
	}
	return MetaField
}

// Table holds per-node columns sharing the index r.
type Table struct {
	Index   []float64
	Columns []string
	data    map[string][]float64
}

// NewTable returns an empty table over index.
func NewTable(index []float64) *Table {
	return &Table{Index: index, data: make(map[string][]float64)}
}

// Add inserts or replaces a column. Its length must equal the index length.
func (t *Table) Add(name string, values []float64) error {
	if len(values) != len(t.Index) {
		return fmt.Errorf("%w: %s has %d values, index has %d", ErrColumnLength, name, len(values), len(t.Index))
	}
	if _, ok := t.data[name]; !ok {
		t.Columns = append(t.Columns, name)
		sort.Strings(t.Columns)
	}
	t.data[name] = values
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Index)
}

func (t *Table) Column(name string) ([]float64, bool) {
	v, ok := t.data[name]
	return v, ok
}

// Row returns the values of every column at row i, keyed by column name.
func (t *Table) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(t.Columns))
	for _, c := range t.Columns {
		row[c] = t.data[c][i]
	}
	return row
}

// WriteCSV writes the table with r as the first column.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{IndexField}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, r := range t.Index {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatFloat(r, 'g', -1, 64))
		for _, c := range t.Columns {
			row = append(row, strconv.FormatFloat(t.data[c][i], 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0]) == 0 || records[0][0] != IndexField {
		return nil, ErrNoIndex
	}

	header := records[0]
	rows := records[1:]
	cols := make([][]float64, len(header))
	for j := range cols {
		cols[j] = make([]float64, len(rows))
	}
	for i, rec := range rows {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("profile: row %d has %d fields, want %d", i+1, len(rec), len(header))
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("profile: row %d column %s: %w", i+1, header[j], err)
			}
			cols[j][i] = v
		}
	}

	t := NewTable(cols[0])
	for j := 1; j < len(header); j++ {
		if err := t.Add(header[j], cols[j]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Metadata holds every imported field that is not a node field.
type Metadata struct {
	Series map[string][]float64
	Text   map[string]string
}

// Par returns the raw parameter file text.
func (m Metadata) Par() string {
	return m.Text[output.ParamKey]
}

// Names returns all metadata keys, sorted.
func (m Metadata) Names() []string {
	names := make([]string, 0, len(m.Series)+len(m.Text))
	for k := range m.Series {
		names = append(names, k)
	}
	for k := range m.Text {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Run is a parsed solver run.
type Run struct {
	Table *Table
	Meta  Metadata
}

// Parse partitions data by comparing each series length to len(r).
func Parse(data *output.Data) (*Run, error) {
	r, ok := data.Series[IndexField]
	if !ok {
		return nil, ErrNoIndex
	}
	n := len(r)

	run := &Run{
		Table: NewTable(r),
		Meta: Metadata{
			Series: make(map[string][]float64),
			Text:   make(map[string]string, len(data.Text)),
		},
	}

	for name, values := range data.Series {
		if name == IndexField {
			continue
		}
		if Classify(len(values), n) == NodeField {
			if err := run.Table.Add(name, values); err != nil {
				return nil, err
			}
			continue
		}
		run.Meta.Series[name] = values
	}
	for name, text := range data.Text {
		run.Meta.Text[name] = text
	}
	return run, nil
}

// ParseDir imports dir and parses the result.
func ParseDir(dir string) (*Run, error) {
	data, err := output.Import(dir)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
