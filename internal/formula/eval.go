// Package formula compiles and evaluates calculation formulas: a
// tokenizer, a recursive-descent parser producing a small AST, and an
// evaluator that runs whole-array functions as a pre-pass over the full
// horizon before per-period arithmetic.
package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/acrebrook/modelgrid/internal/refs"
	"github.com/acrebrook/modelgrid/internal/series"
)

// Limits bounds the work a single formula may cost. Zero fields fall back
// to DefaultLimits.
type Limits struct {
	MaxFormulaLen int
	MaxSteps      int
}

// DefaultLimits is generous for real models and tight enough to stop
// pathological input.
var DefaultLimits = Limits{MaxFormulaLen: 64 * 1024, MaxSteps: 4_000_000}

func (l Limits) withDefaults() Limits {
	if l.MaxFormulaLen <= 0 {
		l.MaxFormulaLen = DefaultLimits.MaxFormulaLen
	}
	if l.MaxSteps <= 0 {
		l.MaxSteps = DefaultLimits.MaxSteps
	}
	return l
}

// Env resolves references to period arrays during evaluation.
type Env interface {
	Resolve(r refs.Ref) (series.Series, bool)
}

// RefUse is one distinct reference of a formula. Lagged is true when every
// occurrence sits inside a lag function (SHIFT with a count of one or
// more, or PREVVAL), meaning the reference reads prior periods only and is
// not a same-period dependency.
type RefUse struct {
	Ref    refs.Ref
	Lagged bool
}

// Program is a compiled formula. It is immutable and safe for concurrent
// Eval calls.
type Program struct {
	src  string
	root Node
	uses []RefUse
}

// Compile tokenizes and parses src. Malformed references, unknown
// functions, and arity mistakes all fail here with the offending text.
func Compile(src string, limits Limits) (*Program, error) {
	limits = limits.withDefaults()
	if len(src) > limits.MaxFormulaLen {
		return nil, fmt.Errorf("formula length %d exceeds the %d byte limit", len(src), limits.MaxFormulaLen)
	}
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("empty formula")
	}
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Program{src: src, root: root, uses: collectUses(root)}, nil
}

// Source returns the original formula text.
func (p *Program) Source() string { return p.src }

// Refs returns the distinct references the formula reads, in first
// appearance order.
func (p *Program) Refs() []RefUse {
	out := make([]RefUse, len(p.uses))
	copy(out, p.uses)
	return out
}

func collectUses(root Node) []RefUse {
	type state struct {
		ref      refs.Ref
		lagged   bool
		unlagged bool
	}
	var order []string
	seen := make(map[string]*state)

	var walk func(n Node, lag bool)
	walk = func(n Node, lag bool) {
		switch v := n.(type) {
		case *RefExpr:
			key := v.Ref.String()
			st, ok := seen[key]
			if !ok {
				st = &state{ref: v.Ref}
				seen[key] = st
				order = append(order, key)
			}
			if lag {
				st.lagged = true
			} else {
				st.unlagged = true
			}
		case *UnaryExpr:
			walk(v.X, lag)
		case *BinaryExpr:
			walk(v.X, lag)
			walk(v.Y, lag)
		case *CallExpr:
			for _, a := range v.Args {
				walk(a, lag)
			}
		case *ArrayCallExpr:
			spec := arrayFuncs[v.Name]
			inner := lag || (spec.lag && (!spec.hasCount || v.Count >= 1))
			walk(v.Arg, inner)
		}
	}
	walk(root, false)

	uses := make([]RefUse, 0, len(order))
	for _, key := range order {
		st := seen[key]
		uses = append(uses, RefUse{Ref: st.ref, Lagged: st.lagged && !st.unlagged})
	}
	return uses
}

// UnknownRefsError reports every reference of a formula its environment
// could not resolve, not just the first.
type UnknownRefsError struct {
	Refs []string
}

func (e *UnknownRefsError) Error() string {
	return "unknown reference(s): " + strings.Join(e.Refs, ", ")
}

// EvalError is an arithmetic fault at one period.
type EvalError struct {
	Period int
	Msg    string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("period %d: %s", e.Period, e.Msg)
}

// BudgetError reports a formula that exceeded its step budget.
type BudgetError struct {
	Steps int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("evaluation budget exceeded after %d steps", e.Steps)
}

// EvalContext carries the environment and horizon for one evaluation.
// YearStart marks the periods where annual-reset accumulations restart;
// when nil, only period 0 restarts.
type EvalContext struct {
	Env       Env
	N         int
	YearStart []bool
	Limits    Limits
}

// Eval computes the formula over every period. On any failure the result
// is a zero-filled array alongside the error; Eval never panics on model
// input.
func (p *Program) Eval(ec *EvalContext) (series.Series, error) {
	limits := ec.Limits.withDefaults()
	n := ec.N
	out := series.Zeros(n)

	ys := ec.YearStart
	if ys == nil {
		ys = make([]bool, n)
		if n > 0 {
			ys[0] = true
		}
	}

	resolved := make(map[string]series.Series, len(p.uses))
	var missing []string
	for _, u := range p.uses {
		s, ok := ec.Env.Resolve(u.Ref)
		if !ok {
			missing = append(missing, u.Ref.String())
			continue
		}
		if len(s) != n {
			return out, fmt.Errorf("reference %s spans %d periods, want %d", u.Ref, len(s), n)
		}
		resolved[u.Ref.String()] = s
	}
	if len(missing) > 0 {
		return out, &UnknownRefsError{Refs: missing}
	}

	ev := &evaluator{
		n:         n,
		yearStart: ys,
		bound:     make(map[*RefExpr]series.Series),
		arrays:    make(map[*ArrayCallExpr]series.Series),
		maxSteps:  limits.MaxSteps,
	}
	ev.bind(p.root, resolved)
	if err := ev.prepass(p.root); err != nil {
		return series.Zeros(n), err
	}
	for t := 0; t < n; t++ {
		v, err := ev.at(p.root, t)
		if err != nil {
			return series.Zeros(n), err
		}
		out[t] = v
	}
	return out, nil
}

type evaluator struct {
	n         int
	yearStart []bool
	bound     map[*RefExpr]series.Series
	arrays    map[*ArrayCallExpr]series.Series
	steps     int
	maxSteps  int
}

func (e *evaluator) bind(n Node, resolved map[string]series.Series) {
	switch v := n.(type) {
	case *RefExpr:
		e.bound[v] = resolved[v.Ref.String()]
	case *UnaryExpr:
		e.bind(v.X, resolved)
	case *BinaryExpr:
		e.bind(v.X, resolved)
		e.bind(v.Y, resolved)
	case *CallExpr:
		for _, a := range v.Args {
			e.bind(a, resolved)
		}
	case *ArrayCallExpr:
		e.bind(v.Arg, resolved)
	}
}

// prepass computes every whole-array subtree once, innermost first, so
// nested forms like SHIFT(CUMSUM(x), 1) see finished arrays.
func (e *evaluator) prepass(n Node) error {
	switch v := n.(type) {
	case *UnaryExpr:
		return e.prepass(v.X)
	case *BinaryExpr:
		if err := e.prepass(v.X); err != nil {
			return err
		}
		return e.prepass(v.Y)
	case *CallExpr:
		for _, a := range v.Args {
			if err := e.prepass(a); err != nil {
				return err
			}
		}
	case *ArrayCallExpr:
		if err := e.prepass(v.Arg); err != nil {
			return err
		}
		x := make(series.Series, e.n)
		for t := 0; t < e.n; t++ {
			val, err := e.at(v.Arg, t)
			if err != nil {
				return err
			}
			x[t] = val
		}
		e.arrays[v] = arrayFuncs[v.Name].apply(x, v.Count, e.yearStart)
	}
	return nil
}

func (e *evaluator) at(n Node, t int) (float64, error) {
	e.steps++
	if e.steps > e.maxSteps {
		return 0, &BudgetError{Steps: e.steps}
	}

	switch v := n.(type) {
	case *NumberLit:
		return v.Value, nil

	case *RefExpr:
		return e.bound[v][t], nil

	case *UnaryExpr:
		x, err := e.at(v.X, t)
		if err != nil {
			return 0, err
		}
		return -x, nil

	case *BinaryExpr:
		x, err := e.at(v.X, t)
		if err != nil {
			return 0, err
		}
		y, err := e.at(v.Y, t)
		if err != nil {
			return 0, err
		}
		var r float64
		switch v.Op {
		case tokenPlus:
			r = x + y
		case tokenMinus:
			r = x - y
		case tokenStar:
			r = x * y
		case tokenSlash:
			if y == 0 {
				return 0, &EvalError{Period: t, Msg: "division by zero"}
			}
			r = x / y
		case tokenCaret:
			r = math.Pow(x, y)
		}
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, &EvalError{Period: t, Msg: "arithmetic produced a non-finite value"}
		}
		return r, nil

	case *CallExpr:
		return e.call(v, t)

	case *ArrayCallExpr:
		return e.arrays[v][t], nil
	}
	return 0, fmt.Errorf("unhandled node %T", n)
}

func (e *evaluator) call(v *CallExpr, t int) (float64, error) {
	switch v.Name {
	case "ABS":
		x, err := e.at(v.Args[0], t)
		if err != nil {
			return 0, err
		}
		return math.Abs(x), nil

	case "IF":
		// Only the taken branch evaluates, so a guard like
		// IF(F1, x / y, 0) never divides outside the flag.
		cond, err := e.at(v.Args[0], t)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return e.at(v.Args[1], t)
		}
		return e.at(v.Args[2], t)

	case "MIN", "MAX":
		best, err := e.at(v.Args[0], t)
		if err != nil {
			return 0, err
		}
		for _, a := range v.Args[1:] {
			x, err := e.at(a, t)
			if err != nil {
				return 0, err
			}
			if (v.Name == "MIN" && x < best) || (v.Name == "MAX" && x > best) {
				best = x
			}
		}
		return best, nil
	}
	return 0, fmt.Errorf("unhandled function %q", v.Name)
}
