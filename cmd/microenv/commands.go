package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/san-kum/microenv/internal/config"
	"github.com/san-kum/microenv/internal/export"
	"github.com/san-kum/microenv/internal/output"
	"github.com/san-kum/microenv/internal/params"
	"github.com/san-kum/microenv/internal/pipeline"
	"github.com/san-kum/microenv/internal/profile"
	"github.com/san-kum/microenv/internal/render"
	"github.com/san-kum/microenv/internal/solver"
	"github.com/san-kum/microenv/internal/storage"
	"github.com/san-kum/microenv/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// loadConfig layers the config file, the preset, --set values and explicitly
// changed flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, fmt.Errorf("%w (available: %v)", err, config.ListPresets())
		}
		if !cmd.Flags().Changed("name") && configFile == "" {
			cfg.Name = preset
		}
	}

	for _, kv := range setValues {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: want KEY=VALUE", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", kv, err)
		}
		if err := cfg.Params.Assign(strings.ToUpper(strings.TrimSpace(key)), v); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = runName
	}
	if flags.Changed("itmax") {
		cfg.ITMax = itmax
	}
	if flags.Changed("slowc") {
		cfg.SlowC = slowc
	}
	if flags.Changed("workspace") {
		cfg.Workspace = workspaceDir
	}
	if flags.Changed("template") {
		cfg.Template = templatePath
	}
	if flags.Changed("source") {
		cfg.Source = sourceName
	}
	if flags.Changed("aux") {
		cfg.AuxSource = auxSource
	}
	if flags.Changed("compiler") {
		cfg.Compiler = compiler
	}
	if flags.Changed("placeholders") {
		cfg.Placeholders = placeholders
	}
	if flags.Changed("timeout") {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if flags.Changed("allow-solver-failure") {
		cfg.AllowSolverFailure = allowFailure
	}

	root := cmd.Root().PersistentFlags()
	if configFile != "" && (!root.Changed("log-level") || !root.Changed("log-format")) {
		level, format := logLevel, logFormat
		if !root.Changed("log-level") && cfg.Log.Level != "" {
			level = cfg.Log.Level
		}
		if !root.Changed("log-format") && cfg.Log.Format != "" {
			format = cfg.Log.Format
		}
		if err := setLogger(level, format); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunner(cfg *config.Config) *pipeline.Runner {
	inv := solver.New(logger.Named("solver"))
	inv.Compiler = cfg.Compiler
	inv.Timeout = cfg.Timeout
	return pipeline.New(inv, logger.Named("pipeline"))
}

func runInfo(cfg *config.Config, set params.Set, res *pipeline.Result) storage.RunInfo {
	info := storage.RunInfo{
		Name:      cfg.Name,
		Preset:    preset,
		Params:    set.Map(),
		BorMult:   set.BorMult(),
		ITMax:     cfg.ITMax,
		SlowC:     cfg.SlowC,
		Template:  cfg.Template,
		Workspace: res.Workspace,
		Duration:  res.Duration,
	}
	if res.SolverErr != nil {
		info.SolverError = res.SolverErr.Error()
	}
	return info
}

func runModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	set := cfg.ParamSet()
	res, err := newRunner(cfg).Run(ctx, set, cfg.Options())
	if err != nil {
		return err
	}

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err = st.Save(runInfo(cfg, set, res), res.Run)
		if err != nil {
			return err
		}
		logger.Info("run stored", zap.String("id", runID), zap.String("dir", st.Dir()))
	}

	printSummary(os.Stdout, runID, res)
	return nil
}

func printSummary(w io.Writer, runID string, res *pipeline.Result) {
	fmt.Fprintln(w)
	if runID != "" {
		fmt.Fprintf(w, "  %s %s\n", tui.Label.Render("run"), tui.Title.Render(runID))
	}
	fmt.Fprintf(w, "  %s %s\n", tui.Label.Render("workspace"), res.Workspace)
	fmt.Fprintf(w, "  %s %s\n", tui.Label.Render("time"), res.Duration.Round(time.Millisecond))
	if res.SolverErr != nil {
		fmt.Fprintf(w, "  %s\n", tui.Warn.Render("solver failed: "+res.SolverErr.Error()))
	}
	printRun(w, res.Run)
}

func printRun(w io.Writer, run *profile.Run) {
	t := run.Table
	fmt.Fprintf(w, "  %s %s", tui.Label.Render("nodes"), tui.Value.Render(strconv.Itoa(t.Len())))
	if t.Len() > 0 {
		fmt.Fprintf(w, "  (r %g .. %g)", t.Index[0], t.Index[t.Len()-1])
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", tui.Label.Render("columns"), strings.Join(t.Columns, " "))
	fmt.Fprintf(w, "  %s %s\n\n", tui.Label.Render("metadata"), strings.Join(run.Meta.Names(), " "))

	if t.Len() == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  FIELD\tSURFACE\tBULK")
	for _, name := range []string{output.PH, output.DIC, output.Alk} {
		values, ok := t.Column(name)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%.4f\t%.4f\n", name, values[0], values[len(values)-1])
	}
	tw.Flush()
}

func renderTemplate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := cfg.Options()

	out := renderOut
	if out == "" {
		out = filepath.Join(cfg.Workspace, cfg.Source)
	}

	tmpl, err := render.Load(cfg.Template)
	if err != nil {
		return err
	}
	report, err := render.RenderFile(out, tmpl, cfg.ParamSet(), opts.Controls, opts.Mode)
	if err != nil {
		return err
	}

	fmt.Printf("rendered %s (%d placeholders)\n", out, len(report.Substituted))
	if len(report.Unused) > 0 {
		fmt.Printf("  %s %s\n", tui.Label.Render("unused"), strings.Join(report.Unused, " "))
	}
	if len(report.Unresolved) > 0 {
		fmt.Printf("  %s %s\n", tui.Warn.Render("unresolved"), strings.Join(report.Unresolved, " "))
	}
	return nil
}

func parseWorkspace(cmd *cobra.Command, args []string) error {
	dir := pipeline.DefaultWorkspace
	if len(args) > 0 {
		dir = args[0]
	}

	run, err := profile.ParseDir(dir)
	if err != nil {
		return err
	}

	if parseCSV {
		return run.Table.WriteCSV(os.Stdout)
	}
	fmt.Println()
	printRun(os.Stdout, run)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tNODES\tITMAX\tSLOWC\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.SolverError != "" {
			status = "solver failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Nodes,
			run.ITMax,
			run.SlowC,
			status,
		)
	}

	return w.Flush()
}

func resolveRun(st *storage.Store, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	latest, err := st.Latest()
	if err != nil {
		return "", err
	}
	return latest.ID, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	table, err := st.LoadTable(runID)
	if err != nil {
		return err
	}
	if table.Len() == 0 {
		return fmt.Errorf("run %s has no nodes to plot", runID)
	}

	fields := []string{plotField}
	if plotField == "all" {
		fields = table.Columns
	}

	fmt.Printf("\n%s\n\n", tui.Title.Render(runID))
	for _, field := range fields {
		values, ok := table.Column(field)
		if !ok {
			return fmt.Errorf("no column %q in run %s (available: %s)", field, runID, strings.Join(table.Columns, ", "))
		}
		caption := fmt.Sprintf("%s vs node (r %g..%g)", field, table.Index[0], table.Index[table.Len()-1])
		graph := tui.Plot(values, caption, plotWidth, plotHeight)
		if graph == "" {
			fmt.Printf("%s: no finite values\n\n", field)
			continue
		}
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportTo(fn func(io.Writer) error) error {
	if exportOut == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported to %s\n", exportOut)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return exportTo(func(w io.Writer) error {
		return st.ExportCSV(w, args[0])
	})
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return exportTo(func(w io.Writer) error {
		return st.ExportJSON(w, args[0])
	})
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID := args[0]

	table, err := st.LoadTable(runID)
	if err != nil {
		return err
	}
	values, ok := table.Column(svgField)
	if !ok {
		return fmt.Errorf("no column %q in run %s (available: %s)", svgField, runID, strings.Join(table.Columns, ", "))
	}

	svg := export.ProfileToSVG(table.Index, values, svgWidth, svgHeight, svgStroke, fmt.Sprintf("%s  %s", runID, svgField))
	if svg == "" {
		return fmt.Errorf("column %q has fewer than two finite points", svgField)
	}

	out := exportOut
	if out == "" {
		out = fmt.Sprintf("%s_%s.svg", runID, svgField)
	}
	if err := os.WriteFile(out, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", out)
	return nil
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, name := range config.ListPresets() {
			fmt.Fprintf(w, "  %s\t%s\n", name, config.GetPreset(name).Description)
		}
		return w.Flush()
	}

	p := config.GetPreset(args[0])
	if p == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	set := params.New(p.Params)
	fmt.Printf("%s: %s\n", tui.Title.Render(args[0]), p.Description)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range set.Names() {
		v, _ := set.Get(name)
		fmt.Fprintf(w, "  %s\t%s\n", name, render.FormatParam(v))
	}
	fmt.Fprintf(w, "  %s\t%g\n", params.BorMultKey, set.BorMult())
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sw := pipeline.Sweep{
		Name:  strings.ToUpper(sweepParam),
		Min:   sweepMin,
		Max:   sweepMax,
		Steps: sweepSteps,
	}
	base := cfg.ParamSet()
	results, err := newRunner(cfg).Sweep(ctx, base, cfg.Options(), sw)

	var st *storage.Store
	if !noSave {
		st = storage.New(dataDir)
		if initErr := st.Init(); initErr != nil {
			return errors.Join(err, initErr)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSURFACE pH\tNODES\tRUN\n", sw.Name)
	for _, r := range results {
		runID := "-"
		if st != nil {
			c := *cfg
			c.Name = fmt.Sprintf("%s_%s_%g", cfg.Name, sw.Name, r.Value)
			id, saveErr := st.Save(runInfo(&c, r.Set, r.Result), r.Result.Run)
			if saveErr != nil {
				return errors.Join(err, saveErr)
			}
			runID = id
		}
		surface := "-"
		if ph, ok := r.Result.Run.Table.Column(output.PH); ok && len(ph) > 0 {
			surface = fmt.Sprintf("%.4f", ph[0])
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", render.FormatParam(r.Value), surface, r.Result.Run.Table.Len(), runID)
	}
	if flushErr := w.Flush(); flushErr != nil {
		return errors.Join(err, flushErr)
	}
	return err
}
