// Package render turns a solver template into concrete solver source by
// substituting **NAME** placeholder tokens.
package render

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/microenv/internal/params"
)

const (
	ITMax = "ITMAX"
	SlowC = "SLOWC"

	DefaultITMax = 400
	DefaultSlowC = 0.3
)

var placeholder = regexp.MustCompile(`\*\*([A-Z][A-Z0-9_]*)\*\*`)

// Mode controls how mismatches between template and values are treated.
type Mode int

const (
	// Strict fails on placeholders without a value.
	Strict Mode = iota
	// Lenient leaves unresolved placeholders in the output.
	Lenient
	// Exact is Strict and additionally fails on values the template never uses.
	Exact
)

func (m Mode) String() string {
	switch m {
	case Lenient:
		return "lenient"
	case Exact:
		return "exact"
	default:
		return "strict"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	case "exact":
		return Exact, nil
	}
	return Strict, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Controls are the solver iteration settings written next to the parameters.
type Controls struct {
	ITMax int     `yaml:"itmax" json:"itmax"`
	SlowC float64 `yaml:"slowc" json:"slowc"`
}

func DefaultControls() Controls {
	return Controls{ITMax: DefaultITMax, SlowC: DefaultSlowC}
}

// Report lists what a render pass did with each name, sorted.
type Report struct {
	Substituted []string
	Unused      []string
	Unresolved  []string
}

// FormatParam formats a physical parameter as a 9-digit scientific literal.
func FormatParam(v float64) string {
	return strconv.FormatFloat(v, 'e', 9, 64)
}

func FormatITMax(n int) string {
	return strconv.Itoa(n)
}

func FormatSlowC(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Values returns the formatted replacement text for every name a render pass can resolve.
func Values(set params.Set, ctl Controls) map[string]string {
	vals := make(map[string]string, set.Len()+2)
	for _, name := range set.Names() {
		v, _ := set.Get(name)
		vals[name] = FormatParam(v)
	}
	vals[ITMax] = FormatITMax(ctl.ITMax)
	vals[SlowC] = FormatSlowC(ctl.SlowC)
	return vals
}

// Render substitutes every placeholder in tmpl in a single pass. The returned
// report is populated even when an error is returned.
func Render(tmpl string, set params.Set, ctl Controls, mode Mode) (string, Report, error) {
	return Substitute(tmpl, Values(set, ctl), mode)
}

// Substitute is Render over preformatted values.
func Substitute(tmpl string, vals map[string]string, mode Mode) (string, Report, error) {
	used := make(map[string]bool)
	unresolved := make(map[string]bool)

	out := placeholder.ReplaceAllStringFunc(tmpl, func(tok string) string {
		name := tok[2 : len(tok)-2]
		v, ok := vals[name]
		if !ok {
			unresolved[name] = true
			return tok
		}
		used[name] = true
		return v
	})

	var rep Report
	for name := range vals {
		if used[name] {
			rep.Substituted = append(rep.Substituted, name)
		} else if name != ITMax && name != SlowC {
			rep.Unused = append(rep.Unused, name)
		}
	}
	for name := range unresolved {
		rep.Unresolved = append(rep.Unresolved, name)
	}
	sort.Strings(rep.Substituted)
	sort.Strings(rep.Unused)
	sort.Strings(rep.Unresolved)

	if mode != Lenient && len(rep.Unresolved) > 0 {
		return "", rep, fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(rep.Unresolved, ", "))
	}
	if mode == Exact && len(rep.Unused) > 0 {
		return "", rep, fmt.Errorf("%w: %s", ErrUnusedParameter, strings.Join(rep.Unused, ", "))
	}
	return out, rep, nil
}

// Load reads a template from disk.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RenderFile renders tmpl and writes the result to out, replacing any existing file.
// Nothing is written when rendering fails.
func RenderFile(out, tmpl string, set params.Set, ctl Controls, mode Mode) (Report, error) {
	text, rep, err := Render(tmpl, set, ctl, mode)
	if err != nil {
		return rep, err
	}
	if err := os.WriteFile(out, []byte(text), 0644); err != nil {
		return rep, err
	}
	return rep, nil
}
