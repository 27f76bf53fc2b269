package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cwbudde/doepilot/internal/doe"
	"github.com/cwbudde/doepilot/internal/opt"
	"github.com/cwbudde/doepilot/internal/pipeline"
	"github.com/cwbudde/doepilot/internal/rsm"
	"github.com/cwbudde/doepilot/internal/store"
)

// Settings tunes the iteration driver and the controller policy.
type Settings struct {
	MaxIterations int     // iteration cap, screening included
	Tol           float64 // relative edge-distance convergence tolerance
	SkipScreening bool
	ReEvaluate    bool // restart from next-best screening candidate when limits stay unmet

	Degree  int
	Method  rsm.Method
	Q2Limit float64
	Folds   int // cross-validation folds; 0 = leave-one-out

	Shrinkage float64 // window span factor applied on accepted moves
	Step      float64 // max relative recenter distance per iteration
	SpanRatio float64 // screening-to-optimization window span ratio

	OutPath string
}

func (s Settings) withDefaults() Settings {
	if s.MaxIterations <= 0 {
		s.MaxIterations = 25
	}
	if s.Tol <= 0 {
		s.Tol = 0.25
	}
	if s.Degree <= 0 {
		s.Degree = 2
	}
	if s.Q2Limit == 0 {
		s.Q2Limit = 0.5
	}
	if s.Shrinkage <= 0 || s.Shrinkage > 1 {
		s.Shrinkage = 0.9
	}
	if s.Step <= 0 {
		s.Step = 0.25
	}
	if s.SpanRatio <= 0 {
		s.SpanRatio = 0.5
	}
	if s.OutPath == "" {
		s.OutPath = "optimum.csv"
	}
	return s
}

// Report is the run outcome.
type Report struct {
	Iterations    int
	Phase         Phase
	Optimum       map[string]float64
	Categorical   map[string]string
	Converged     bool
	ReachedLimits bool
	OutPath       string
}

// Engine ties design generation, pipeline execution, model fitting,
// and the controller policy into the iteration loop.
type Engine struct {
	factors   []doe.Factor
	responses []doe.Response
	spec      *pipeline.Spec
	opts      doe.Options
	exec      pipeline.Executor
	st        *store.FSStore
	optimizer opt.Optimizer
	settings  Settings
	respNames []string
}

// New assembles an engine. The executor and optimizer are chosen once
// at startup, never re-dispatched per iteration.
func New(factors []doe.Factor, responses []doe.Response, spec *pipeline.Spec,
	opts doe.Options, exec pipeline.Executor, st *store.FSStore,
	optimizer opt.Optimizer, settings Settings) *Engine {

	names := make([]string, 0, len(responses))
	for _, r := range responses {
		names = append(names, r.Name)
	}
	return &Engine{
		factors:   factors,
		responses: responses,
		spec:      spec,
		opts:      opts,
		exec:      exec,
		st:        st,
		optimizer: optimizer,
		settings:  settings.withDefaults(),
		respNames: names,
	}
}

// Run starts a fresh optimization run.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	return e.run(ctx, NewState(e.factors, e.settings.SkipScreening))
}

// Resume continues a run from its persisted state. The first
// incomplete iteration is re-run from scratch.
func (e *Engine) Resume(ctx context.Context) (*Report, error) {
	rs, err := e.st.LoadForResume()
	if err != nil {
		return nil, err
	}
	return e.run(ctx, FromRunState(rs))
}

func (e *Engine) run(ctx context.Context, state *State) (*Report, error) {
	var final *opt.Optimum

	for !state.Phase.Terminal() && state.Iteration < e.settings.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := state.Iteration + 1
		slog.Info("Iteration started", "iteration", n, "phase", state.Phase)

		design, table, err := e.runIteration(ctx, n, state)
		if err != nil {
			return nil, err
		}

		if state.Phase == PhaseScreening {
			if err := e.evaluateScreening(state, design, table); err != nil {
				return nil, err
			}
		} else {
			optimum, err := e.evaluateOptimization(ctx, n, state, design, table)
			if err != nil {
				return nil, err
			}
			final = optimum
		}

		state.Iteration = n
		if err := e.st.SaveState(state.ToRunState()); err != nil {
			return nil, err
		}
		if err := e.st.MarkComplete(n); err != nil {
			return nil, err
		}
		slog.Info("Iteration complete", "iteration", n, "phase", state.Phase)
	}

	return e.finish(state, final)
}

// runIteration persists the window, generates and persists the design,
// executes the full collection, and persists results. The engine blocks
// here until every row has finished; no partial results feed the model.
func (e *Engine) runIteration(ctx context.Context, n int, state *State) (*doe.Design, *pipeline.Table, error) {
	if err := e.st.EnsureIterDir(n); err != nil {
		return nil, nil, err
	}
	if err := e.st.SaveWindows(n, state.Windows); err != nil {
		return nil, nil, err
	}

	phase := doe.PhaseOptimization
	if state.Phase == PhaseScreening {
		phase = doe.PhaseScreening
	}
	design, err := doe.Generate(e.factors, state.Windows, phase, e.opts)
	if err != nil {
		return nil, nil, err
	}
	if err := e.st.SaveDesign(n, design); err != nil {
		return nil, nil, err
	}

	rows := make([]map[string]string, design.NRows())
	for i := range rows {
		rows[i] = design.RenderRow(i)
	}
	batch, err := pipeline.BuildBatch(e.spec, e.st.IterDir(n), rows, e.respNames)
	if err != nil {
		return nil, nil, err
	}
	table, err := e.exec.Run(ctx, batch)
	if err != nil {
		return nil, nil, err
	}

	if err := e.st.SaveResults(n, table); err != nil {
		return nil, nil, err
	}
	if err := e.st.SaveSheet(n, design, table); err != nil {
		return nil, nil, err
	}
	return design, table, nil
}

// evaluateScreening ranks the screening rows and recenters the window
// around the best candidate.
func (e *Engine) evaluateScreening(state *State, design *doe.Design, table *pipeline.Table) error {
	candidates, err := rankScreening(design, table, e.responses, e.settings.SpanRatio)
	if err != nil {
		return err
	}
	state.Screening = candidates
	state.ScreeningRank = 0
	state.Windows = candidates[0].Windows.Clone()
	state.Phase = PhaseOptimizing
	slog.Info("Screening evaluated",
		"candidates", len(candidates), "bestScore", candidates[0].Score)
	return nil
}

// evaluateOptimization fits the response models, searches the surface
// (or falls back to the empirically best row), optionally runs the
// validation experiment, and applies the accept / rollback / converge
// transition.
func (e *Engine) evaluateOptimization(ctx context.Context, n int, state *State,
	design *doe.Design, table *pipeline.Table) (*opt.Optimum, error) {

	models := e.fitModels(design, table)

	optimum, ok := opt.SearchSurface(models, e.responses, e.factors, design.Numeric,
		state.Windows, e.optimizer, 1, e.settings.Tol)
	if !ok {
		var err error
		optimum, err = empiricalOptimum(design, table, e.responses, state.Windows, e.settings.Tol)
		if err != nil {
			return nil, err
		}
	}

	var validation *store.BestExperiment
	if !optimum.Empirical {
		validation = e.runValidation(ctx, n, state, optimum)
	}
	newBest := bestObserved(design, table, validation, e.responses, n, state.Best)

	switch {
	case optimum.Converged && optimum.ReachedLimits:
		if newBest != nil {
			state.Best = newBest
		}
		state.PrevOptimum = optimum.Predicted
		state.Phase = PhaseConverged

	case optimum.Converged:
		// Converged but a hard response limit stays unmet.
		if e.settings.ReEvaluate && restartNextCandidate(state) {
			slog.Info("Limits unmet at convergence, restarting from next screening candidate",
				"rank", state.ScreeningRank)
		} else {
			if newBest != nil {
				state.Best = newBest
			}
			state.PrevOptimum = optimum.Predicted
			state.Phase = PhaseConverged
		}

	case newBest != nil:
		state.Best = newBest
		state.PrevOptimum = optimum.Predicted
		state.Windows = recenter(state.Windows, optimum.Predicted, e.factors,
			e.settings.Step, e.settings.Shrinkage)
		slog.Info("New best accepted, window recentered",
			"iteration", n, "score", newBest.Score)

	default:
		// Nothing beat the previous best: roll back.
		if e.settings.ReEvaluate && !optimum.ReachedLimits && restartNextCandidate(state) {
			slog.Info("No improvement and limits unmet, restarting from next screening candidate",
				"rank", state.ScreeningRank)
		} else {
			state.Phase = PhaseStopped
			slog.Info("No improvement over previous best, rolling back", "iteration", n)
		}
	}
	return optimum, nil
}

// fitModels fits one model per response, excluding rows with missing
// observations. A response whose fit fails outright is left out of the
// map; the optimum search then falls back to the empirical best.
func (e *Engine) fitModels(design *doe.Design, table *pipeline.Table) map[string]*rsm.Model {
	var xs [][]float64
	ys := make(map[string][]float64, len(e.responses))
	for i := range table.Rows {
		if table.Rows[i].Missing() {
			continue
		}
		xs = append(xs, design.Coded[i])
		for _, name := range e.respNames {
			ys[name] = append(ys[name], table.Rows[i].Values[name])
		}
	}

	cfg := rsm.FitConfig{
		Degree:  e.settings.Degree,
		Method:  e.settings.Method,
		Q2Limit: e.settings.Q2Limit,
		Folds:   e.settings.Folds,
	}
	models := make(map[string]*rsm.Model, len(e.responses))
	for i := range e.responses {
		r := e.responses[i]
		m, err := rsm.Fit(xs, ys[r.Name], r, cfg)
		if err != nil {
			slog.Warn("Model fit failed, response excluded", "response", r.Name, "error", err)
			continue
		}
		models[r.Name] = m
	}
	return models
}

// runValidation executes one extra experiment at the model-predicted
// optimum and returns it as a best-comparison candidate. Failure is
// non-fatal; the iteration's decision then rests on the design rows
// alone.
func (e *Engine) runValidation(ctx context.Context, n int, state *State,
	optimum *opt.Optimum) *store.BestExperiment {

	rendered := make(map[string]string, len(e.factors))
	categorical := make(map[string]string)
	for i := range e.factors {
		f := &e.factors[i]
		if f.IsNumeric() {
			rendered[f.Name] = f.Format(optimum.Predicted[f.Name])
			continue
		}
		level := f.Levels[0]
		if state.Best != nil {
			if v, ok := state.Best.Categorical[f.Name]; ok {
				level = v
			}
		}
		rendered[f.Name] = level
		categorical[f.Name] = level
	}

	dir := filepath.Join(e.st.IterDir(n), "validation")
	batch, err := pipeline.BuildBatch(e.spec, dir, []map[string]string{rendered}, e.respNames)
	if err != nil {
		slog.Warn("Validation experiment skipped", "error", err)
		return nil
	}
	table, err := e.exec.Run(ctx, batch)
	if err != nil || table.Rows[0].Missing() {
		slog.Warn("Validation experiment failed", "iteration", n, "error", err)
		return nil
	}

	score, _ := rsm.Score(table.Rows[0].Values, e.responses)
	slog.Info("Validation experiment complete", "iteration", n, "score", score)
	return &store.BestExperiment{
		Iteration:   n,
		RowIndex:    -1,
		Factors:     cloneFloats(optimum.Predicted),
		Categorical: cloneStrings(categorical),
		Responses:   cloneFloats(table.Rows[0].Values),
		Score:       score,
	}
}

// restartNextCandidate rewinds the run onto the next-best screening
// candidate, if one remains.
func restartNextCandidate(state *State) bool {
	next := state.ScreeningRank + 1
	if next >= len(state.Screening) {
		return false
	}
	state.ScreeningRank = next
	state.Windows = state.Screening[next].Windows.Clone()
	state.Best = nil
	state.PrevOptimum = nil
	return true
}

// finish writes the final optimum. Converged runs write to the
// configured output path; anything else writes to a distinctly
// suffixed path so callers can tell forced termination from success.
func (e *Engine) finish(state *State, final *opt.Optimum) (*Report, error) {
	converged := state.Phase == PhaseConverged

	var values map[string]float64
	var reached bool
	switch {
	case converged && final != nil:
		values = final.Predicted
		reached = final.ReachedLimits
	case state.PrevOptimum != nil:
		values = state.PrevOptimum
		reached = state.Best != nil && rsm.LimitsMet(state.Best.Responses, e.responses)
	case state.Best != nil:
		values = state.Best.Factors
		reached = rsm.LimitsMet(state.Best.Responses, e.responses)
	case len(state.Screening) > 0:
		c := state.Screening[state.ScreeningRank]
		values = c.Factors
		reached = rsm.LimitsMet(c.Responses, e.responses)
	default:
		return nil, fmt.Errorf("run produced no optimum")
	}

	var categorical map[string]string
	if state.Best != nil {
		categorical = state.Best.Categorical
	} else if len(state.Screening) > 0 {
		categorical = state.Screening[state.ScreeningRank].Categorical
	}

	path := e.settings.OutPath
	if !converged {
		path = unconvergedPath(path)
	}
	names := make([]string, 0, len(e.factors))
	for i := range e.factors {
		names = append(names, e.factors[i].Name)
	}
	if err := store.WriteOptimum(path, names, values, categorical, converged, reached); err != nil {
		return nil, err
	}

	slog.Info("Run finished",
		"iterations", state.Iteration,
		"phase", state.Phase,
		"converged", converged,
		"reachedLimits", reached,
		"output", path)
	return &Report{
		Iterations:    state.Iteration,
		Phase:         state.Phase,
		Optimum:       values,
		Categorical:   categorical,
		Converged:     converged,
		ReachedLimits: reached,
		OutPath:       path,
	}, nil
}

// unconvergedPath inserts the .unconverged marker before the extension.
func unconvergedPath(out string) string {
	ext := filepath.Ext(out)
	return strings.TrimSuffix(out, ext) + ".unconverged" + ext
}
