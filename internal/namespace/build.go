package namespace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/acrebrook/modelgrid/internal/ctxlog"
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
	"github.com/acrebrook/modelgrid/internal/series"
	"github.com/acrebrook/modelgrid/internal/timegrid"
)

// TimeConstantKeys lists every T.{key} reference a grid defines, in
// listing order.
func TimeConstantKeys() []string {
	return []string{"DiM", "DiY", "DiQ", "MiY", "QiY", "MiQ", "WiY", "HiD", "HiM", "HiY"}
}

// timeConstants builds the ten T.{key} arrays for a grid. All of them are
// per-period and leap-year aware where the calendar matters.
func timeConstants(g *timegrid.Grid) map[string]series.Series {
	n := g.Len()
	dim := make(series.Series, n)
	diy := make(series.Series, n)
	diq := make(series.Series, n)
	wiy := make(series.Series, n)
	him := make(series.Series, n)
	hiy := make(series.Series, n)
	for t := 0; t < n; t++ {
		m := g.MonthAt(t)
		dim[t] = float64(timegrid.DaysInMonth(m))
		diy[t] = float64(timegrid.DaysInYear(m.Year))
		diq[t] = float64(timegrid.DaysInQuarter(m))
		wiy[t] = diy[t] / 7
		him[t] = 24 * dim[t]
		hiy[t] = 24 * diy[t]
	}
	return map[string]series.Series{
		"DiM": dim,
		"DiY": diy,
		"DiQ": diq,
		"MiY": series.Constant(12, n),
		"QiY": series.Constant(4, n),
		"MiQ": series.Constant(3, n),
		"WiY": wiy,
		"HiD": series.Constant(24, n),
		"HiM": him,
		"HiY": hiy,
	}
}

// Build constructs the namespace of a compiled recipe. Model-level
// problems (a selected lookup option out of range, for example) surface
// as diagnostics; the affected entries resolve to zeros.
func Build(ctx context.Context, rec *recipe.Recipe) (*Namespace, diag.Diagnostics, error) {
	if rec == nil || rec.Grid == nil {
		return nil, nil, errors.New("namespace: nil recipe or grid")
	}
	logger := ctxlog.FromContext(ctx)
	n := rec.Grid.Len()
	ns := &Namespace{grid: rec.Grid, entries: make(map[string]Entry)}
	var diags diag.Diagnostics

	for key, values := range timeConstants(rec.Grid) {
		ns.put(refs.Time(key), values, recipe.FlowConverter)
	}

	for _, kp := range rec.KeyPeriods {
		full := series.Zeros(n)
		start := series.Zeros(n)
		end := series.Zeros(n)
		if kp.Active && kp.Start <= kp.End && kp.Start < n && kp.End >= 0 {
			lo := kp.Start
			if lo < 0 {
				lo = 0
			}
			hi := kp.End
			if hi > n-1 {
				hi = n - 1
			}
			for t := lo; t <= hi; t++ {
				full[t] = 1
			}
			if kp.Start >= 0 {
				start[kp.Start] = 1
			}
			if kp.End <= n-1 {
				end[kp.End] = 1
			}
		}
		ns.put(refs.Flag(kp.ID, refs.SuffixNone), full, recipe.FlagType)
		ns.put(refs.Flag(kp.ID, refs.SuffixStart), start, recipe.FlagType)
		ns.put(refs.Flag(kp.ID, refs.SuffixEnd), end, recipe.FlagType)
	}

	for _, idx := range rec.Indices {
		values := make(series.Series, n)
		for t := 0; t < n; t++ {
			values[t] = math.Pow(1+idx.Rate, float64(t-idx.Base)/12)
		}
		ns.put(refs.Index(idx.ID), values, recipe.FlowConverter)
	}

	for _, gr := range ScanRanks(rec) {
		if !gr.Active {
			continue
		}
		switch gr.Kind {
		case refs.KindConstant:
			for i, in := range gr.Group.Inputs {
				ns.put(refs.Input(refs.KindConstant, gr.Pos, i+1), series.Constant(in.Value, n), recipe.Stock)
			}
		case refs.KindValues:
			for i, in := range gr.Group.Inputs {
				ns.put(refs.Input(refs.KindValues, gr.Pos, i+1), sparseToSeries(in.Values, n), recipe.Flow)
			}
		case refs.KindSeries:
			for i, in := range gr.Group.Inputs {
				ns.put(refs.Input(refs.KindSeries, gr.Pos, i+1), sparseToFilledSeries(in.Values, n), recipe.Flow)
			}
		case refs.KindLookup:
			diags = buildLookup(ns, gr, n, diags)
		}
	}

	logger.DebugContext(ctx, "Namespace built.",
		"entries", ns.Len(),
		"periods", n,
		"key_periods", len(rec.KeyPeriods),
		"indices", len(rec.Indices),
	)
	return ns, diags, nil
}

func buildLookup(ns *Namespace, gr GroupRank, n int, diags diag.Diagnostics) diag.Diagnostics {
	for s, sub := range gr.Group.SubGroups {
		subRef := refs.Input(refs.KindLookup, gr.Pos, s+1)
		for o, opt := range sub.Options {
			ns.put(refs.Option(gr.Pos, s+1, o+1), series.Constant(opt.Value, n), recipe.Stock)
		}
		if sub.Selected < 1 || sub.Selected > len(sub.Options) {
			ns.put(subRef, series.Zeros(n), recipe.Stock)
			diags = diags.Warnf(
				fmt.Sprintf("lookup %q / %q", gr.Group.Name, sub.Name),
				"selected option %d is out of range (have %d option(s)); resolving %s to zero",
				sub.Selected, len(sub.Options), subRef,
			)
			continue
		}
		ns.put(subRef, series.Constant(sub.Options[sub.Selected-1].Value, n), recipe.Stock)
	}
	return diags
}

func sparseToSeries(values map[int]float64, n int) series.Series {
	out := series.Zeros(n)
	for t, v := range values {
		if t >= 0 && t < n {
			out[t] = v
		}
	}
	return out
}

// sparseToFilledSeries carries each entered value forward until the next
// entered month.
func sparseToFilledSeries(values map[int]float64, n int) series.Series {
	out := series.Zeros(n)
	if len(values) == 0 {
		return out
	}
	keys := make([]int, 0, len(values))
	for t := range values {
		if t >= 0 && t < n {
			keys = append(keys, t)
		}
	}
	sort.Ints(keys)
	for i, t := range keys {
		stop := n
		if i+1 < len(keys) {
			stop = keys[i+1]
		}
		for u := t; u < stop; u++ {
			out[u] = values[t]
		}
	}
	return out
}
