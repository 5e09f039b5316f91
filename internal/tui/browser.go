// Package tui is the terminal browser for stored runs.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/microenv/internal/profile"
	"github.com/san-kum/microenv/internal/storage"
)

// Source is the part of the run store the browser reads.
type Source interface {
	List() ([]storage.RunMetadata, error)
	LoadTable(runID string) (*profile.Table, error)
	LoadPar(runID string) (string, error)
}

type view int

const (
	viewList view = iota
	viewRun
	viewPar
)

type model struct {
	src    Source
	view   view
	runs   []storage.RunMetadata
	cursor int

	table  *profile.Table
	par    string
	column int
	err    error

	width  int
	height int
}

func NewBrowser(src Source) (tea.Model, error) {
	runs, err := src.List()
	if err != nil {
		return nil, err
	}
	// newest first
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return model{src: src, runs: runs, width: 80, height: 24}, nil
}

// Browse runs the browser until the user quits.
func Browse(src Source) error {
	m, err := NewBrowser(src)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.view {
	case viewList:
		return m.listKey(msg)
	case viewRun:
		return m.runKey(msg)
	case viewPar:
		switch msg.String() {
		case "q", "esc", "p":
			m.view = viewRun
		}
	}
	return m, nil
}

func (m model) listKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.runs)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(m.runs) == 0 {
			return m, nil
		}
		m.open(m.runs[m.cursor].ID)
	}
	return m, nil
}

func (m *model) open(runID string) {
	m.err = nil
	m.column = 0
	m.table, m.err = m.src.LoadTable(runID)
	if m.err != nil {
		return
	}
	m.par, m.err = m.src.LoadPar(runID)
	if m.err != nil {
		return
	}
	m.view = viewRun
}

func (m model) runKey(msg tea.KeyMsg) (model, tea.Cmd) {
	n := len(m.table.Columns)
	switch msg.String() {
	case "q", "esc":
		m.view = viewList
		m.table = nil
	case "right", "l", "tab":
		if n > 0 {
			m.column = (m.column + 1) % n
		}
	case "left", "h", "shift+tab":
		if n > 0 {
			m.column = (m.column - 1 + n) % n
		}
	case "p":
		m.view = viewPar
	}
	return m, nil
}

func (m model) View() string {
	switch m.view {
	case viewRun:
		return m.viewRun()
	case viewPar:
		return m.viewPar()
	}
	return m.viewList()
}

func (m model) viewList() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("    " + Title.Render("m i c r o e n v") + dim.Render("  stored runs") + "\n")
	b.WriteString(dimmer.Render("    "+strings.Repeat("─", 40)) + "\n\n")

	if len(m.runs) == 0 {
		b.WriteString("      " + dim.Render("no runs yet") + "\n")
	}
	for i, run := range m.runs {
		status := green.Render("●")
		if run.SolverError != "" {
			status = yellow.Render("●")
		}
		desc := fmt.Sprintf("%4d nodes  %s", run.Nodes, run.Timestamp.Format("2006-01-02 15:04"))
		if i == m.cursor {
			b.WriteString("    " + cyan.Render("▸ ") + status + " " + white.Render(fmt.Sprintf("%-32s", run.ID)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("      " + status + " " + dim.Render(fmt.Sprintf("%-32s", run.ID)) + dimmer.Render(desc) + "\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n    " + red.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("    ↑↓ select   enter open   q quit") + "\n")
	return b.String()
}

func (m model) viewRun() string {
	run := m.runs[m.cursor]
	var b strings.Builder

	b.WriteString("\n   " + Title.Render(run.ID) + "\n")
	if run.SolverError != "" {
		b.WriteString("   " + Warn.Render("solver: "+run.SolverError) + "\n")
	}
	b.WriteString("\n")

	if len(m.table.Columns) == 0 {
		b.WriteString("   " + dim.Render("no profile columns") + "\n")
	} else {
		name := m.table.Columns[m.column]
		values, _ := m.table.Column(name)

		tabs := make([]string, len(m.table.Columns))
		for i, c := range m.table.Columns {
			if i == m.column {
				tabs[i] = magenta.Render(c)
			} else {
				tabs[i] = dim.Render(c)
			}
		}
		b.WriteString("   " + strings.Join(tabs, dimmer.Render(" · ")) + "\n\n")

		w := m.width - 16
		if w < 30 {
			w = 30
		}
		h := m.height - 14
		if h < 6 {
			h = 6
		}
		graph := Plot(values, fmt.Sprintf("%s vs node (r %g..%g)", name, first(m.table.Index), last(m.table.Index)), w, h)
		if graph == "" {
			graph = dim.Render("no finite values")
		}
		b.WriteString(graph + "\n")
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("   ←→ column   p parameters   esc back") + "\n")
	return b.String()
}

func (m model) viewPar() string {
	var b strings.Builder
	b.WriteString("\n   " + Title.Render(m.runs[m.cursor].ID) + dim.Render("  par.sv4") + "\n\n")
	b.WriteString(Panel.Render(strings.TrimRight(m.par, "\n")) + "\n\n")
	b.WriteString(dim.Render("   esc back") + "\n")
	return b.String()
}

func first(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}
