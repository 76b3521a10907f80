// Package analysis runs post-evaluation checks over resolved series:
// balance residuals, covenant floors, and internal rate of return. A
// check that cannot be measured (its target never evaluated, a covenant
// with no active periods, an IRR with no sign change) reports
// Undetermined rather than a pass or fail.
package analysis

import (
	"fmt"
	"math"

	"github.com/acrebrook/modelgrid/internal/recipe"
)

// DefaultBalanceTolerance absorbs float noise when a check declares no
// tolerance of its own.
const DefaultBalanceTolerance = 0.01

const (
	irrIterations = 100
	irrTolerance  = 1e-7
)

// Source resolves a reference string to its evaluated period series.
type Source interface {
	Series(ref string) ([]float64, error)
}

// Result is the verdict of one check. Value carries the measured
// quantity: the worst absolute residual for balance checks, the minimum
// over active periods for covenants, the annualized rate for IRR.
type Result struct {
	Kind         recipe.CheckKind
	Name         string
	Target       string
	Passed       bool
	Undetermined bool
	Value        float64
	Periods      []int
	Detail       string
}

// Run dispatches a compiled check against the evaluated model.
func Run(check *recipe.Check, src Source) *Result {
	res := &Result{Kind: check.Kind, Name: check.Name, Target: check.Target}

	values, err := src.Series(check.Target)
	if err != nil {
		res.Undetermined = true
		res.Detail = fmt.Sprintf("target did not evaluate: %v", err)
		return res
	}

	switch check.Kind {
	case recipe.CheckBalance:
		measureBalance(res, values, check.Tolerance)
	case recipe.CheckCovenant:
		var active []float64
		if check.Active != "" {
			active, err = src.Series(check.Active)
			if err != nil {
				res.Undetermined = true
				res.Detail = fmt.Sprintf("active flag did not evaluate: %v", err)
				return res
			}
		}
		measureCovenant(res, values, active, check.Threshold)
	case recipe.CheckIRR:
		measureIRR(res, values)
	default:
		res.Undetermined = true
		res.Detail = fmt.Sprintf("unknown check kind %q", check.Kind)
	}
	return res
}

// Balance verifies that a series is zero in every period, within tol.
// A non-positive tol falls back to DefaultBalanceTolerance.
func Balance(name, target string, values []float64, tol float64) *Result {
	res := &Result{Kind: recipe.CheckBalance, Name: name, Target: target}
	measureBalance(res, values, tol)
	return res
}

func measureBalance(res *Result, values []float64, tol float64) {
	if tol <= 0 {
		tol = DefaultBalanceTolerance
	}
	worst, worstAt := 0.0, -1
	for t, v := range values {
		a := math.Abs(v)
		if a > tol {
			res.Periods = append(res.Periods, t)
		}
		if a > worst {
			worst, worstAt = a, t
		}
	}
	res.Value = worst
	res.Passed = len(res.Periods) == 0
	if res.Passed {
		res.Detail = fmt.Sprintf("worst residual %.6g within tolerance %.6g", worst, tol)
	} else {
		res.Detail = fmt.Sprintf("residual %.6g in period %d exceeds tolerance %.6g (%d period(s) fail)",
			worst, worstAt, tol, len(res.Periods))
	}
}

// Covenant verifies that a series stays at or above threshold in every
// active period. A nil active slice means every period counts; an
// all-zero one makes the result undetermined.
func Covenant(name, target string, values, active []float64, threshold float64) *Result {
	res := &Result{Kind: recipe.CheckCovenant, Name: name, Target: target}
	measureCovenant(res, values, active, threshold)
	return res
}

func measureCovenant(res *Result, values, active []float64, threshold float64) {
	min, minAt, seen := 0.0, -1, false
	for t, v := range values {
		if active != nil && (t >= len(active) || active[t] == 0) {
			continue
		}
		if !seen || v < min {
			min, minAt = v, t
		}
		seen = true
		if v < threshold {
			res.Periods = append(res.Periods, t)
		}
	}
	if !seen {
		res.Undetermined = true
		res.Detail = "no active periods to test"
		return
	}
	res.Value = min
	res.Passed = len(res.Periods) == 0
	if res.Passed {
		res.Detail = fmt.Sprintf("minimum %.6g in period %d meets threshold %.6g (headroom %.6g)",
			min, minAt, threshold, min-threshold)
	} else {
		res.Detail = fmt.Sprintf("minimum %.6g in period %d is below threshold %.6g (headroom %.6g, %d period(s) fail)",
			min, minAt, threshold, min-threshold, len(res.Periods))
	}
}

// InternalRateOfReturn solves the monthly rate that zeroes the net
// present value of the flows, then annualizes it. The result is
// undetermined when the flows cannot carry a rate: all zero, no sign
// change, or Newton iteration fails to settle.
func InternalRateOfReturn(name, target string, flows []float64) *Result {
	res := &Result{Kind: recipe.CheckIRR, Name: name, Target: target}
	measureIRR(res, flows)
	return res
}

func measureIRR(res *Result, flows []float64) {
	pos, neg := false, false
	for _, v := range flows {
		if v > 0 {
			pos = true
		}
		if v < 0 {
			neg = true
		}
	}
	if !pos || !neg {
		res.Undetermined = true
		res.Detail = "flows never change sign; no rate is defined"
		return
	}

	monthly, ok := solveIRR(flows)
	if !ok {
		res.Undetermined = true
		res.Detail = "rate left the solvable range or never converged"
		return
	}

	annual := math.Pow(1+monthly, 12) - 1
	res.Value = annual
	res.Passed = true
	res.Detail = fmt.Sprintf("annual rate %.4f%% (monthly %.6f)", annual*100, monthly)
}

// solveIRR runs Newton iteration on the NPV of a monthly flow series.
func solveIRR(flows []float64) (float64, bool) {
	r := 0.01
	for i := 0; i < irrIterations; i++ {
		npv, slope := 0.0, 0.0
		for t, v := range flows {
			d := math.Pow(1+r, float64(t))
			npv += v / d
			slope -= float64(t) * v / (d * (1 + r))
		}
		if math.Abs(npv) < irrTolerance {
			return r, true
		}
		if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
			return 0, false
		}
		next := r - npv/slope
		// Monthly rates outside [-50%, +100%] are noise, not a solution.
		if math.IsNaN(next) || math.IsInf(next, 0) || next < -0.5 || next > 1.0 {
			return 0, false
		}
		r = next
	}
	return 0, false
}
