package main

import (
	"os"

	"github.com/san-kum/microenv/internal/logging"
	"github.com/san-kum/microenv/internal/storage"
	"github.com/san-kum/microenv/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir   string
	logLevel  string
	logFormat string
	logger    = zap.NewNop()

	// run, render and sweep
	configFile   string
	preset       string
	setValues    []string
	runName      string
	itmax        int
	slowc        float64
	workspaceDir string
	templatePath string
	sourceName   string
	auxSource    string
	compiler     string
	placeholders string
	timeout      string
	allowFailure bool
	noSave       bool

	// render
	renderOut string
	// parse
	parseCSV bool
	// plot
	plotField  string
	plotWidth  int
	plotHeight int
	// export
	exportOut string
	svgField  string
	svgWidth  int
	svgHeight int
	svgStroke string
	// sweep
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
)

// main registers the microenv commands and executes the root command,
// exiting with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "microenv",
		Short:         "foraminifera microenvironment model runner",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setLogger(logLevel, logFormat)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".microenv", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "render the template, run the solver and store the parsed profile",
		Args:  cobra.NoArgs,
		RunE:  runModel,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "render the solver source without running it",
		Args:  cobra.NoArgs,
		RunE:  renderTemplate,
	}
	addRunFlags(renderCmd)
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output file (default: <workspace>/<source>)")

	parseCmd := &cobra.Command{
		Use:   "parse [dir]",
		Short: "parse the output of an existing workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  parseWorkspace,
	}
	parseCmd.Flags().BoolVar(&parseCSV, "csv", false, "write the profile table as CSV to stdout")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a profile column of a stored run (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVarP(&plotField, "field", "f", "pH", "column to plot, or \"all\"")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 15, "plot height")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the profile table of a run to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export a profile column of a run as an SVG line chart",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: <run_id>_<field>.svg)")
	exportSVGCmd.Flags().StringVarP(&svgField, "field", "f", "pH", "column to draw")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 400, "image height")
	exportSVGCmd.Flags().StringVar(&svgStroke, "stroke", "#00ccff", "line color")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list parameter presets, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run the model over a range of one parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to vary, e.g. RADIUS")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of runs")
	sweepCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")
	_ = sweepCmd.MarkFlagRequired("param")

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "browse stored runs in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Browse(storage.New(dataDir))
		},
	}

	rootCmd.AddCommand(runCmd, renderCmd, parseCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, sweepCmd, browseCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "config file path (yaml)")
	f.StringVarP(&preset, "preset", "p", "", "parameter preset")
	f.StringArrayVar(&setValues, "set", nil, "override a parameter, KEY=VALUE (repeatable)")
	f.StringVar(&runName, "name", "", "run name used in the stored run id")
	f.IntVar(&itmax, "itmax", 400, "maximum solver iterations")
	f.Float64Var(&slowc, "slowc", 0.3, "solver step damping")
	f.StringVarP(&workspaceDir, "workspace", "w", "./py_run/", "run directory")
	f.StringVarP(&templatePath, "template", "t", "resources/solvde42_py_temp.c", "solver source template")
	f.StringVar(&sourceName, "source", "solvde42_py_run.c", "rendered source file name")
	f.StringVar(&auxSource, "aux", "resources/nrutil.c", "support source copied into the workspace")
	f.StringVar(&compiler, "compiler", "gcc", "C compiler")
	f.StringVar(&placeholders, "placeholders", "strict", "placeholder checking (strict, lenient, exact)")
	f.StringVar(&timeout, "timeout", "", "limit for build and run together, e.g. 10m")
	f.BoolVar(&allowFailure, "allow-solver-failure", false, "parse the workspace even if the solver fails")
}

func setLogger(level, format string) error {
	l, err := logging.New(level, format, os.Stderr)
	if err != nil {
		return err
	}
	_ = logger.Sync()
	logger = l
	return nil
}
