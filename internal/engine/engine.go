// Package engine runs compiled recipes end to end: it builds the
// reference namespace, plans the calculation order with cycle isolation,
// evaluates every formula over the model horizon, and runs the declared
// checks against the results. Failed calculations are data, not run
// failures: they publish zero-filled arrays with the error recorded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/acrebrook/modelgrid/internal/analysis"
	"github.com/acrebrook/modelgrid/internal/compiler"
	"github.com/acrebrook/modelgrid/internal/ctxlog"
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/formula"
	"github.com/acrebrook/modelgrid/internal/namespace"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
	"github.com/acrebrook/modelgrid/internal/series"
	"github.com/acrebrook/modelgrid/internal/spec"
	"github.com/acrebrook/modelgrid/internal/templates"
)

const defaultCacheSize = 1024

// Options tunes a run. The zero value evaluates sequentially with
// default limits.
type Options struct {
	// Workers sets evaluation concurrency. Values below two evaluate
	// sequentially; both modes produce identical results.
	Workers int

	// Strict turns error-severity compile diagnostics into a failed run
	// instead of evaluating whatever did compile.
	Strict bool

	// Limits bounds the work one formula may cost. Zero fields fall back
	// to formula.DefaultLimits.
	Limits formula.Limits

	// CacheSize caps the compiled-formula cache. Zero means 1024.
	CacheSize int
}

// CalcResult is one calculation's evaluated array. Err is empty when the
// calculation evaluated; otherwise Values is all zero and Err says why.
type CalcResult struct {
	ID      int
	Name    string
	Formula string
	Type    recipe.ValueType
	Solver  bool
	Module  string
	Values  series.Series
	Err     string
}

// Failed reports whether the calculation did not evaluate.
func (c *CalcResult) Failed() bool { return c.Err != "" }

// Result is one full evaluation of a model.
type Result struct {
	Name       string
	Calcs      []*CalcResult // ascending ID
	Namespace  *namespace.Namespace
	Aliases    refs.AliasTable
	ModuleRefs map[string]string // "M1.2" -> "R14"
	Order      []int             // evaluation order actually used
	Checks     []*analysis.Result
	Diags      diag.Diagnostics

	env    *overlay
	limits formula.Limits
	failed map[int]bool
}

// Run compiles the model and evaluates the compiled recipe in one call.
// A model that produced no recipe at all returns the diagnostics with an
// error; under Options.Strict, any error-severity diagnostic does.
func Run(ctx context.Context, model *spec.Model, reg *templates.Registry, opts Options) (*Result, error) {
	rec, diags, err := compiler.Compile(ctx, model, reg)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if rec == nil {
		return &Result{Diags: diags}, errors.New("model did not compile; see diagnostics")
	}
	if opts.Strict && diags.HasErrors() {
		return &Result{Diags: diags}, errors.New("compilation reported errors and strict mode is set")
	}

	res, err := Evaluate(ctx, rec, opts)
	if err != nil {
		return nil, err
	}
	res.Diags = append(diags, res.Diags...)
	return res, nil
}

// Evaluate runs an already-compiled recipe.
func Evaluate(ctx context.Context, rec *recipe.Recipe, opts Options) (*Result, error) {
	if rec == nil || rec.Grid == nil {
		return nil, errors.New("nil recipe")
	}
	logger := ctxlog.FromContext(ctx)

	ns, diags, err := namespace.Build(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}

	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := formula.NewCache(cacheSize, opts.Limits)
	if err != nil {
		return nil, err
	}

	plan := newEvalPlan(ctx, rec, cache)
	ev := newEvaluator(rec, ns, plan, opts)

	if len(plan.hard.Cyclic) > 0 {
		msg := plan.hard.CycleMessage()
		for _, id := range plan.hard.Cyclic {
			ev.fail(id, msg)
		}
		skip := plan.hard.SkipMessage()
		for _, id := range plan.hard.Skipped {
			ev.fail(id, skip)
		}
	}

	workers := opts.Workers
	if workers < 2 {
		ev.runSequential()
	} else {
		ev.runParallel(workers)
	}

	res := &Result{
		Name:       rec.Name,
		Namespace:  ns,
		Aliases:    rec.Aliases,
		ModuleRefs: moduleRefStrings(rec),
		Order:      plan.order,
		Diags:      diags,
		env:        ev.env,
		limits:     opts.Limits,
		failed:     make(map[int]bool),
	}

	for _, c := range rec.Calcs {
		cr := &CalcResult{
			ID:      c.ID,
			Name:    c.Name,
			Formula: c.Formula,
			Type:    c.Type,
			Solver:  c.Solver,
			Module:  c.Module,
			Values:  ev.values(c.ID),
		}
		if msg, ok := ev.failures[c.ID]; ok {
			cr.Err = msg
			res.failed[c.ID] = true
			subject := refs.Calc(c.ID).String() + " " + c.Name
			res.Diags = res.Diags.Warnf(subject, "%s", msg)
			logger.Warn("Calculation failed.", "ref", refs.Calc(c.ID).String(), "name", c.Name, "error", msg)
		}
		res.Calcs = append(res.Calcs, cr)
	}
	sort.Slice(res.Calcs, func(i, j int) bool { return res.Calcs[i].ID < res.Calcs[j].ID })

	for _, check := range rec.Checks {
		res.Checks = append(res.Checks, analysis.Run(check, &resultSource{res: res}))
	}

	logger.Debug("Evaluation finished.",
		"calcs", len(res.Calcs),
		"failed", len(res.failed),
		"checks", len(res.Checks),
		"workers", workers,
	)
	return res, nil
}

// Query compiles and evaluates a formula against the evaluated model, so
// callers can probe results interactively. Failed calculations resolve
// as their published zero arrays.
func (r *Result) Query(src string) (series.Series, error) {
	if r.env == nil {
		return nil, errors.New("result holds no evaluated model")
	}
	p, err := formula.Compile(src, r.limits)
	if err != nil {
		return nil, err
	}
	n := r.Namespace.Grid().Len()
	return p.Eval(&formula.EvalContext{
		Env:       r.env,
		N:         n,
		YearStart: r.Namespace.Grid().YearStarts(),
		Limits:    r.limits,
	})
}

// CalcByID returns the result of one calculation.
func (r *Result) CalcByID(id int) (*CalcResult, bool) {
	for _, c := range r.Calcs {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func moduleRefStrings(rec *recipe.Recipe) map[string]string {
	out := make(map[string]string, len(rec.ModuleRefs))
	for key, id := range rec.ModuleRefs {
		out[key] = refs.Calc(id).String()
	}
	return out
}

// resultSource feeds check analysis from the evaluated overlay. Failed
// calculations are withheld so their checks come back undetermined
// instead of judging zero-filled placeholders.
type resultSource struct {
	res *Result
}

func (s *resultSource) Series(ref string) ([]float64, error) {
	r, err := refs.Parse(ref)
	if err != nil {
		return nil, err
	}
	if id, ok := s.calcID(r); ok && s.res.failed[id] {
		cr, _ := s.res.CalcByID(id)
		return nil, errors.New(cr.Err)
	}
	v, ok := s.res.env.Resolve(r)
	if !ok {
		return nil, fmt.Errorf("unknown reference %s", ref)
	}
	return v, nil
}

func (s *resultSource) calcID(r refs.Ref) (int, bool) {
	switch r.Kind {
	case refs.KindCalc:
		return r.A, true
	case refs.KindModule:
		id, ok := s.res.env.modRefs[r.String()]
		return id, ok
	}
	return 0, false
}
