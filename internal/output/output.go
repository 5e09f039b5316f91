// Package output reads the solver's fixed-format .sv4 files into named
// series and derives the carbonate-chemistry quantities from them.
//
// Concentrations are in umol/kg; h is in umol/kg as well, so pH is taken
// from h*1e-6.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	Suffix    = ".sv4"
	ParamFile = "par" + Suffix
	ParamKey  = "par"
)

// Derived field names.
const (
	PH  = "pH"
	DIC = "dic"
	Alk = "alk"
)

// Data is everything imported from one run directory: numeric series keyed
// by file base name, and text fields such as the raw parameter file.
type Data struct {
	Series map[string][]float64
	Text   map[string]string
}

func NewData() *Data {
	return &Data{
		Series: make(map[string][]float64),
		Text:   make(map[string]string),
	}
}

// Names returns every field name, series and text, sorted.
func (d *Data) Names() []string {
	names := make([]string, 0, len(d.Series)+len(d.Text))
	for k := range d.Series {
		names = append(names, k)
	}
	for k := range d.Text {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (d *Data) require(name, purpose string) ([]float64, error) {
	v, ok := d.Series[name]
	if !ok {
		return nil, &MissingFieldError{Field: name, For: purpose}
	}
	return v, nil
}

// Files lists the numeric output files in dir, excluding the parameter file.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Suffix) || e.Name() == ParamFile {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// Import reads every .sv4 file in dir. The derived fields pH, dic and alk are
// always computed, and par.sv4 is stored verbatim under "par".
func Import(dir string) (*Data, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoOutputFiles, dir)
	}

	data := NewData()
	for _, f := range files {
		values, err := ReadSeries(f)
		if err != nil {
			return nil, err
		}
		data.Series[strings.TrimSuffix(filepath.Base(f), Suffix)] = values
	}

	if err := Derive(data); err != nil {
		return nil, err
	}

	par, err := os.ReadFile(filepath.Join(dir, ParamFile))
	if err != nil {
		return nil, fmt.Errorf("output: read parameter file: %w", err)
	}
	data.Text[ParamKey] = string(par)

	return data, nil
}

// ReadSeries parses whitespace separated numbers into a flat slice. Rows and
// columns are not distinguished. Tokens that are not numbers, such as the
// "-nan" C prints, are read as NaN.
func ReadSeries(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := make([]float64, 0, 64)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			var numErr *strconv.NumError
			if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
				values = append(values, v)
				continue
			}
			v = math.NaN()
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("output: read %s: %w", path, err)
	}
	return values, nil
}

// Derive adds pH, dic and alk to data:
//
//	pH  = -log10(h * 1e-6)
//	dic = co2 + co3 + hco3
//	alk = hco3 + 2*co3 + boh4 + oh
func Derive(data *Data) error {
	h, err := data.require("h", PH)
	if err != nil {
		return err
	}
	co2, err := data.require("co2", DIC)
	if err != nil {
		return err
	}
	co3, err := data.require("co3", DIC)
	if err != nil {
		return err
	}
	hco3, err := data.require("hco3", DIC)
	if err != nil {
		return err
	}
	boh4, err := data.require("boh4", Alk)
	if err != nil {
		return err
	}
	oh, err := data.require("oh", Alk)
	if err != nil {
		return err
	}

	n := len(h)
	for name, s := range map[string][]float64{"co2": co2, "co3": co3, "hco3": hco3, "boh4": boh4, "oh": oh} {
		if len(s) != n {
			return fmt.Errorf("%w: %s has %d values, h has %d", ErrLengthMismatch, name, len(s), n)
		}
	}

	ph := make([]float64, n)
	dic := make([]float64, n)
	alk := make([]float64, n)
	for i := 0; i < n; i++ {
		ph[i] = -math.Log10(h[i] * 1e-6)
		dic[i] = co2[i] + co3[i] + hco3[i]
		alk[i] = hco3[i] + 2*co3[i] + boh4[i] + oh[i]
	}
	data.Series[PH] = ph
	data.Series[DIC] = dic
	data.Series[Alk] = alk
	return nil
}
