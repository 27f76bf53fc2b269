package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/doepilot/internal/config"
	"github.com/cwbudde/doepilot/internal/engine"
	"github.com/cwbudde/doepilot/internal/opt"
	"github.com/cwbudde/doepilot/internal/pipeline"
	"github.com/cwbudde/doepilot/internal/rsm"
	"github.com/cwbudde/doepilot/internal/store"
)

var (
	configPath string
	execMode   string
	workers    int
	pollSecs   int
	recovery   bool

	maxIter       int
	tol           float64
	skipScreening bool
	reEvaluate    bool
	reduction     int
	degree        int
	selection     string
	q2Limit       float64
	folds         int
	shrinkage     float64
	stepLength    float64
	spanRatio     float64
	outPath       string

	searchIters int
	searchPop   int
	seed        int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline optimization from a YAML specification",
	Long: `Runs the full optimization loop: screening (unless skipped), iterative
response-surface optimization, and final optimum output.`,
	RunE: runOptimization,
}

func init() {
	addEngineFlags(runCmd)
	runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}

// addEngineFlags registers the shared run/resume flag set.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Run specification YAML (required)")
	cmd.Flags().StringVar(&execMode, "mode", "serial", "Execution mode: serial, parallel, cluster")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Worker pool bound for parallel mode")
	cmd.Flags().IntVar(&pollSecs, "poll", 5, "Cluster poll interval in seconds")
	cmd.Flags().BoolVar(&recovery, "recover", false, "Cluster mode: skip rows with complete results files")

	cmd.Flags().IntVar(&maxIter, "max-iter", 25, "Iteration cap, screening included")
	cmd.Flags().Float64Var(&tol, "tol", 0.25, "Relative convergence tolerance (0-1)")
	cmd.Flags().BoolVar(&skipScreening, "skip-screening", false, "Start optimizing over the initial windows")
	cmd.Flags().BoolVar(&reEvaluate, "re-evaluate-screening", false, "Restart from next-best screening candidate when limits stay unmet")
	cmd.Flags().IntVar(&reduction, "reduction", 0, "Screening GSD reduction factor (0 = auto)")
	cmd.Flags().IntVar(&degree, "degree", 2, "Polynomial degree (1-3)")
	cmd.Flags().StringVar(&selection, "selection", "brute", "Term selection method: brute, greedy")
	cmd.Flags().Float64Var(&q2Limit, "q2-limit", 0.5, "Minimum cross-validated Q2 per response model")
	cmd.Flags().IntVar(&folds, "folds", 0, "Cross-validation folds (0 = leave-one-out)")
	cmd.Flags().Float64Var(&shrinkage, "shrinkage", 0.9, "Window span factor on accepted moves")
	cmd.Flags().Float64Var(&stepLength, "step", 0.25, "Max relative recenter distance per iteration")
	cmd.Flags().Float64Var(&spanRatio, "span-ratio", 0.5, "Screening-to-optimization window span ratio")
	cmd.Flags().StringVar(&outPath, "out", "optimum.csv", "Output path for the predicted optimum")

	cmd.Flags().IntVar(&searchIters, "search-iters", 100, "Surface search iterations")
	cmd.Flags().IntVar(&searchPop, "search-pop", 30, "Surface search population size")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for the surface search")
}

func runOptimization(cmd *cobra.Command, args []string) error {
	eng, cfg, err := buildEngine()
	if err != nil {
		return err
	}
	if err := runSetup(cfg); err != nil {
		return err
	}

	report, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// buildEngine loads the specification and assembles the engine with
// the executor and optimizer chosen once, up front.
func buildEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	var executor pipeline.Executor
	switch execMode {
	case "serial":
		executor = pipeline.NewSerialExecutor()
	case "parallel":
		executor, err = pipeline.NewParallelExecutor(workers)
		if err != nil {
			return nil, nil, err
		}
	case "cluster":
		executor = pipeline.NewClusterExecutor(&pipeline.SlurmRunner{},
			time.Duration(pollSecs)*time.Second, recovery)
	default:
		return nil, nil, fmt.Errorf("unknown execution mode: %s", execMode)
	}

	st, err := store.NewFSStore(cfg.WorkDir)
	if err != nil {
		return nil, nil, err
	}

	opts := cfg.DesignOptions()
	if reduction > 0 {
		opts.Reduction = reduction
	}

	settings := engine.Settings{
		MaxIterations: maxIter,
		Tol:           tol,
		SkipScreening: skipScreening,
		ReEvaluate:    reEvaluate,
		Degree:        degree,
		Method:        rsm.Method(selection),
		Q2Limit:       q2Limit,
		Folds:         folds,
		Shrinkage:     shrinkage,
		Step:          stepLength,
		SpanRatio:     spanRatio,
		OutPath:       outPath,
	}

	eng := engine.New(cfg.BuildFactors(), cfg.BuildResponses(), cfg.BuildPipeline(),
		opts, executor, st, opt.NewMayfly(searchIters, searchPop, seed), settings)
	return eng, cfg, nil
}

// runSetup applies the before_run section: environment variables, then
// setup scripts, once, before the loop.
func runSetup(cfg *config.Config) error {
	if cfg.BeforeRun == nil {
		return nil
	}
	for key, value := range cfg.BeforeRun.Env {
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	for _, script := range cfg.BeforeRun.Scripts {
		slog.Info("Running setup script", "script", script)
		c := exec.Command("sh", "-c", script)
		c.Dir = cfg.WorkDir
		if out, err := c.CombinedOutput(); err != nil {
			return fmt.Errorf("setup script failed: %w: %s", err, string(out))
		}
	}
	return nil
}

func printReport(report *engine.Report) {
	fmt.Printf("Finished after %d iteration(s): %s\n", report.Iterations, report.Phase)
	fmt.Printf("Optimum written to %s\n", report.OutPath)
	for name, value := range report.Optimum {
		fmt.Printf("  %s = %g\n", name, value)
	}
	for name, value := range report.Categorical {
		fmt.Printf("  %s = %s\n", name, value)
	}
	if !report.Converged {
		fmt.Println("Warning: iteration budget exhausted or rolled back before convergence")
	}
	if !report.ReachedLimits {
		fmt.Println("Warning: configured response limits were not met at the optimum")
	}
}
