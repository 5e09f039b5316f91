package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/microenv/internal/params"
	"github.com/san-kum/microenv/internal/pipeline"
	"github.com/san-kum/microenv/internal/render"
	"github.com/san-kum/microenv/internal/solver"
)

const template = `double radius = **RADIUS**;
double bort = **BORTBULK**;
int itmax = **ITMAX**;
double slowc = **SLOWC**;
`

// fakeSolver stands in for gcc and the compiled solver. The run stage writes
// a three node profile into the directory it was started in.
type fakeSolver struct {
	cwd       []string
	buildExit int
	runExit   int
	write     bool
}

func (f *fakeSolver) Execute(ctx context.Context, cmd solver.Command) (*solver.Result, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	f.cwd = append(f.cwd, wd)

	if !strings.HasPrefix(cmd.Binary, "./") {
		return &solver.Result{Command: cmd, ExitCode: f.buildExit}, nil
	}
	if f.write {
		files := map[string]string{
			"r.sv4":    "250 300 350",
			"h.sv4":    "1e-8 1e-8 1e-8",
			"co2.sv4":  "10 11 12",
			"hco3.sv4": "1800 1790 1780",
			"co3.sv4":  "200 205 210",
			"boh4.sv4": "90 91 92",
			"oh.sv4":   "5 5 5",
			"ks.sv4":   "1e-6",
			"par.sv4":  "RADIUS 250",
		}
		for name, body := range files {
			if err := os.WriteFile(filepath.Join(cmd.Dir, name), []byte(body+"\n"), 0644); err != nil {
				return nil, err
			}
		}
	}
	return &solver.Result{Command: cmd, ExitCode: f.runExit, Stderr: "nan encountered\n"}, nil
}

var _ = Describe("Runner", func() {
	var (
		root   string
		fake   *fakeSolver
		runner *pipeline.Runner
		opts   pipeline.Options
		set    params.Set
		origWd string
	)

	BeforeEach(func() {
		var err error
		root, err = os.MkdirTemp("", "pipeline")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, root)

		origWd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tmpl := filepath.Join(root, "template.c")
		Expect(os.WriteFile(tmpl, []byte(template), 0644)).To(Succeed())
		aux := filepath.Join(root, "nrutil.c")
		Expect(os.WriteFile(aux, []byte("/* nrutil */\n"), 0644)).To(Succeed())

		fake = &fakeSolver{write: true}
		inv := solver.New(nil)
		inv.Executor = fake
		runner = pipeline.New(inv, nil)

		opts = pipeline.DefaultOptions()
		opts.Workspace = filepath.Join(root, "run")
		opts.Template = tmpl
		opts.AuxSource = aux

		set = params.New(params.Inputs{Radius: 250, Salinity: 35, BorMult: 1})
	})

	AfterEach(func() {
		Expect(os.Getwd()).To(Equal(origWd))
	})

	It("renders, stages, runs and parses", func() {
		res, err := runner.Run(context.Background(), set, opts)
		Expect(err).NotTo(HaveOccurred())

		src, err := os.ReadFile(filepath.Join(opts.Workspace, pipeline.DefaultSource))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(src)).To(ContainSubstring("double radius = 2.500000000e+02;"))
		Expect(string(src)).To(ContainSubstring("double bort = 4.160000000e+02;"))
		Expect(string(src)).To(ContainSubstring("int itmax = 400;"))
		Expect(string(src)).To(ContainSubstring("double slowc = 0.30;"))
		Expect(filepath.Join(opts.Workspace, "nrutil.c")).To(BeAnExistingFile())

		Expect(res.Processes).To(HaveLen(2))
		Expect(res.SolverErr).NotTo(HaveOccurred())
		Expect(res.Run.Table.Index).To(Equal([]float64{250, 300, 350}))
		Expect(res.Run.Table.Columns).To(ContainElements("pH", "dic", "alk", "co2"))
		Expect(res.Run.Meta.Series).To(HaveKey("ks"))
		Expect(res.Run.Meta.Par()).To(Equal("RADIUS 250\n"))

		dic, ok := res.Run.Table.Column("dic")
		Expect(ok).To(BeTrue())
		Expect(dic[0]).To(BeNumerically("~", 2010, 1e-9))
	})

	It("runs the solver from inside the workspace", func() {
		_, err := runner.Run(context.Background(), set, opts)
		Expect(err).NotTo(HaveOccurred())

		ws, err := filepath.EvalSymlinks(opts.Workspace)
		Expect(err).NotTo(HaveOccurred())
		Expect(fake.cwd).To(HaveLen(2))
		for _, wd := range fake.cwd {
			Expect(filepath.EvalSymlinks(wd)).To(Equal(ws))
		}
	})

	It("reuses an existing workspace", func() {
		Expect(os.Mkdir(opts.Workspace, 0755)).To(Succeed())
		staged := filepath.Join(opts.Workspace, "nrutil.c")
		Expect(os.WriteFile(staged, []byte("keep"), 0644)).To(Succeed())

		_, err := runner.Run(context.Background(), set, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.ReadFile(staged)).To(Equal([]byte("keep")))
	})

	It("does not create missing parents", func() {
		opts.Workspace = filepath.Join(root, "missing", "run")

		_, err := runner.Run(context.Background(), set, opts)
		Expect(err).To(MatchError(os.ErrNotExist))
		Expect(fake.cwd).To(BeEmpty())
	})

	It("fails on unresolved placeholders in strict mode", func() {
		Expect(os.WriteFile(opts.Template, []byte("x = **NOPE**;"), 0644)).To(Succeed())

		_, err := runner.Run(context.Background(), set, opts)
		Expect(err).To(MatchError(render.ErrUnresolvedPlaceholder))
		Expect(fake.cwd).To(BeEmpty())
	})

	It("reports a failing build and skips the solver", func() {
		fake.buildExit = 1

		_, err := runner.Run(context.Background(), set, opts)
		Expect(err).To(MatchError(solver.ErrBuildFailed))
		Expect(fake.cwd).To(HaveLen(1))
	})

	It("reports a failing solver", func() {
		fake.runExit = 2

		_, err := runner.Run(context.Background(), set, opts)
		Expect(err).To(MatchError(solver.ErrSolverFailed))

		var pe *solver.ProcessError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.Result.ExitCode).To(Equal(2))
	})

	It("parses anyway when solver failure is allowed", func() {
		fake.runExit = 2
		opts.AllowSolverFailure = true

		res, err := runner.Run(context.Background(), set, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.SolverErr).To(MatchError(solver.ErrSolverFailed))
		Expect(res.Run.Table.Len()).To(Equal(3))
	})

	It("surfaces both errors when a failed solver left nothing behind", func() {
		fake.runExit = 2
		fake.write = false
		opts.AllowSolverFailure = true

		_, err := runner.Run(context.Background(), set, opts)
		Expect(err).To(MatchError(solver.ErrSolverFailed))
		Expect(err.Error()).To(ContainSubstring("no output"))
	})
})

var _ = Describe("Sweep", func() {
	It("spaces values evenly and ends on Max", func() {
		sw := pipeline.Sweep{Name: params.Radius, Min: 100, Max: 300, Steps: 5}
		Expect(sw.Values()).To(Equal([]float64{100, 150, 200, 250, 300}))
	})

	It("uses Min for a single step", func() {
		sw := pipeline.Sweep{Name: params.Radius, Min: 100, Max: 300, Steps: 1}
		Expect(sw.Values()).To(Equal([]float64{100}))
	})

	Context("running", func() {
		var (
			root   string
			fake   *fakeSolver
			runner *pipeline.Runner
			opts   pipeline.Options
			base   params.Set
		)

		BeforeEach(func() {
			var err error
			root, err = os.MkdirTemp("", "sweep")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, root)

			tmpl := filepath.Join(root, "template.c")
			Expect(os.WriteFile(tmpl, []byte(template), 0644)).To(Succeed())

			fake = &fakeSolver{write: true}
			inv := solver.New(nil)
			inv.Executor = fake
			runner = pipeline.New(inv, nil)

			opts = pipeline.DefaultOptions()
			opts.Workspace = filepath.Join(root, "sweep")
			opts.Template = tmpl
			opts.AuxSource = ""

			base = params.New(params.Inputs{Radius: 250, Salinity: 35, BorMult: 1})
		})

		It("runs each step in its own directory", func() {
			sw := pipeline.Sweep{Name: params.Radius, Min: 100, Max: 200, Steps: 3}

			results, err := runner.Sweep(context.Background(), base, opts, sw)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))

			for i, r := range results {
				dir := filepath.Join(opts.Workspace, fmt.Sprintf("RADIUS_%d", i))
				Expect(r.Result.Workspace).To(Equal(dir))
				src, err := os.ReadFile(filepath.Join(dir, pipeline.DefaultSource))
				Expect(err).NotTo(HaveOccurred())
				Expect(string(src)).To(ContainSubstring(render.FormatParam(r.Value)))
				radius, ok := r.Set.Get(params.Radius)
				Expect(ok).To(BeTrue())
				Expect(radius).To(Equal(r.Value))
				salinity, _ := r.Set.Get(params.Salinity)
				Expect(salinity).To(Equal(35.0))
			}
		})

		It("stops at the first failing step", func() {
			fake.runExit = 1
			sw := pipeline.Sweep{Name: params.Radius, Min: 100, Max: 200, Steps: 3}

			results, err := runner.Sweep(context.Background(), base, opts, sw)
			Expect(err).To(MatchError(solver.ErrSolverFailed))
			Expect(results).To(BeEmpty())
			Expect(fake.cwd).To(HaveLen(2))
		})

		It("rejects derived and unknown parameters", func() {
			for _, name := range []string{params.BorTBulk, "NOPE"} {
				_, err := runner.Sweep(context.Background(), base, opts, pipeline.Sweep{Name: name, Steps: 2})
				Expect(err).To(MatchError(pipeline.ErrInvalidSweep))
			}
		})

		It("rejects a non-positive step count", func() {
			_, err := runner.Sweep(context.Background(), base, opts, pipeline.Sweep{Name: params.Radius})
			Expect(err).To(MatchError(pipeline.ErrInvalidSweep))
		})
	})
})
