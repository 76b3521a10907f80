package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/acrebrook/modelgrid/internal/formula"
	"github.com/acrebrook/modelgrid/internal/graph"
	"github.com/acrebrook/modelgrid/internal/namespace"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
	"github.com/acrebrook/modelgrid/internal/series"
)

// evalUnit is one scheduling unit: a single calculation, or a cluster of
// calculations tied together by lagged references that must settle by
// iteration.
type evalUnit struct {
	members   []int // same-period dependency order
	recurrent bool
}

// evalPlan is the compiled shape of one evaluation: programs, the
// same-period schedule (whose leftover set names the true cycles), and
// the unit schedule that also respects lagged reads.
type evalPlan struct {
	progs       map[int]*formula.Program
	compileErrs map[int]error
	hard        *graph.Schedule
	units       []*evalUnit
	levels      [][]*evalUnit
	order       []int
}

// newEvalPlan compiles every formula and schedules the calculations.
// Same-period references are hard edges: cycles through them are
// unevaluable. Lag-wrapped references are soft edges: they order
// evaluation so a lagged read sees a finished array whenever the graph
// allows, and otherwise bind their strongly connected calculations into
// one recurrent unit.
func newEvalPlan(ctx context.Context, rec *recipe.Recipe, cache *formula.Cache) *evalPlan {
	p := &evalPlan{
		progs:       make(map[int]*formula.Program, len(rec.Calcs)),
		compileErrs: make(map[int]error),
	}

	ids := make([]int, 0, len(rec.Calcs))
	hardDeps := make(map[int][]int)
	lagDeps := make(map[int][]int)
	for _, c := range rec.Calcs {
		ids = append(ids, c.ID)
		prog, err := cache.Get(c.Formula)
		if err != nil {
			p.compileErrs[c.ID] = err
			continue
		}
		p.progs[c.ID] = prog
		for _, use := range prog.Refs() {
			dep, ok := calcRefID(rec, use.Ref)
			if !ok {
				continue
			}
			if use.Lagged {
				lagDeps[c.ID] = append(lagDeps[c.ID], dep)
			} else {
				hardDeps[c.ID] = append(hardDeps[c.ID], dep)
			}
		}
	}

	p.hard = graph.Plan(ctx, ids, hardDeps)

	evaluable := make(map[int]bool, len(p.hard.Order))
	for _, id := range p.hard.Order {
		evaluable[id] = true
	}
	allDeps := make(map[int][]int, len(p.hard.Order))
	for _, id := range p.hard.Order {
		for _, d := range hardDeps[id] {
			if evaluable[d] {
				allDeps[id] = append(allDeps[id], d)
			}
		}
		for _, d := range lagDeps[id] {
			if evaluable[d] {
				allDeps[id] = append(allDeps[id], d)
			}
		}
	}

	pos := make(map[int]int, len(p.hard.Order))
	for i, id := range p.hard.Order {
		pos[id] = i
	}

	comps := graph.Components(p.hard.Order, allDeps)
	unitByKey := make(map[int]*evalUnit, len(comps))
	keyOf := make(map[int]int, len(p.hard.Order))
	superIDs := make([]int, 0, len(comps))
	for _, comp := range comps {
		key := comp[0]
		members := append([]int(nil), comp...)
		sort.Slice(members, func(i, j int) bool { return pos[members[i]] < pos[members[j]] })
		u := &evalUnit{members: members, recurrent: len(comp) > 1}
		if !u.recurrent {
			for _, d := range lagDeps[key] {
				if d == key {
					u.recurrent = true
				}
			}
		}
		unitByKey[key] = u
		superIDs = append(superIDs, key)
		for _, m := range comp {
			keyOf[m] = key
		}
	}

	superDeps := make(map[int][]int, len(comps))
	for _, id := range p.hard.Order {
		for _, d := range allDeps[id] {
			if keyOf[d] != keyOf[id] {
				superDeps[keyOf[id]] = append(superDeps[keyOf[id]], keyOf[d])
			}
		}
	}

	// The condensation is acyclic, so every unit schedules.
	superPlan := graph.Plan(ctx, superIDs, superDeps)
	for _, key := range superPlan.Order {
		u := unitByKey[key]
		p.units = append(p.units, u)
		p.order = append(p.order, u.members...)
	}
	for _, level := range superPlan.Levels {
		units := make([]*evalUnit, len(level))
		for i, key := range level {
			units[i] = unitByKey[key]
		}
		p.levels = append(p.levels, units)
	}
	return p
}

func calcRefID(rec *recipe.Recipe, r refs.Ref) (int, bool) {
	switch r.Kind {
	case refs.KindCalc:
		return r.A, true
	case refs.KindModule:
		id, ok := rec.ModuleRefs[r.String()]
		return id, ok
	}
	return 0, false
}

// overlay resolves calculation results over the immutable namespace base.
// It is the only shared mutable state of a run.
type overlay struct {
	ns      *namespace.Namespace
	modRefs map[string]int

	mu   sync.RWMutex
	vals map[int]series.Series
}

func (o *overlay) Resolve(r refs.Ref) (series.Series, bool) {
	var id int
	switch r.Kind {
	case refs.KindCalc:
		id = r.A
	case refs.KindModule:
		mid, ok := o.modRefs[r.String()]
		if !ok {
			return nil, false
		}
		id = mid
	default:
		return o.ns.Resolve(r)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.vals[id]
	return s, ok
}

func (o *overlay) publish(id int, s series.Series) {
	o.mu.Lock()
	o.vals[id] = s
	o.mu.Unlock()
}

type evaluator struct {
	n          int
	yearStarts []bool
	limits     formula.Limits
	plan       *evalPlan
	env        *overlay

	mu       sync.Mutex
	failures map[int]string
}

func newEvaluator(rec *recipe.Recipe, ns *namespace.Namespace, plan *evalPlan, opts Options) *evaluator {
	return &evaluator{
		n:          rec.Grid.Len(),
		yearStarts: rec.Grid.YearStarts(),
		limits:     opts.Limits,
		plan:       plan,
		env: &overlay{
			ns:      ns,
			modRefs: rec.ModuleRefs,
			vals:    make(map[int]series.Series, len(rec.Calcs)),
		},
		failures: make(map[int]string),
	}
}

func (e *evaluator) evalContext() *formula.EvalContext {
	return &formula.EvalContext{Env: e.env, N: e.n, YearStart: e.yearStarts, Limits: e.limits}
}

// fail publishes a zero array for id and records why. The first recorded
// message wins.
func (e *evaluator) fail(id int, msg string) {
	e.env.publish(id, series.Zeros(e.n))
	e.mu.Lock()
	if _, dup := e.failures[id]; !dup {
		e.failures[id] = msg
	}
	e.mu.Unlock()
}

func (e *evaluator) values(id int) series.Series {
	if s, ok := e.env.Resolve(refs.Calc(id)); ok {
		return s
	}
	return series.Zeros(e.n)
}

func (e *evaluator) runSequential() {
	for _, u := range e.plan.units {
		e.runUnit(u)
	}
}

// runParallel evaluates level by level: units within one level share no
// edges, so they run concurrently on a bounded pool.
func (e *evaluator) runParallel(workers int) {
	for _, level := range e.plan.levels {
		if len(level) == 1 {
			e.runUnit(level[0])
			continue
		}
		ready := make(chan *evalUnit, len(level))
		for _, u := range level {
			ready <- u
		}
		close(ready)

		w := workers
		if w > len(level) {
			w = len(level)
		}
		var wg sync.WaitGroup
		wg.Add(w)
		for i := 0; i < w; i++ {
			go func() {
				defer wg.Done()
				for u := range ready {
					e.runUnit(u)
				}
			}()
		}
		wg.Wait()
	}
}

func (e *evaluator) runUnit(u *evalUnit) {
	if !u.recurrent {
		e.evalSingle(u.members[0])
		return
	}
	e.iterate(u)
}

func (e *evaluator) evalSingle(id int) {
	if err := e.plan.compileErrs[id]; err != nil {
		e.fail(id, "formula did not compile: "+err.Error())
		return
	}
	out, err := e.plan.progs[id].Eval(e.evalContext())
	if err != nil {
		e.fail(id, err.Error())
		return
	}
	e.env.publish(id, out)
}

// iterate settles a recurrent unit: members start from zero arrays and
// re-evaluate in order until a full pass changes nothing. A lag of one
// period hardens one more period per pass, so horizon+1 passes decide;
// a unit still moving after that is reported, not looped forever.
func (e *evaluator) iterate(u *evalUnit) {
	live := make([]int, 0, len(u.members))
	for _, id := range u.members {
		if err := e.plan.compileErrs[id]; err != nil {
			e.fail(id, "formula did not compile: "+err.Error())
			continue
		}
		e.env.publish(id, series.Zeros(e.n))
		live = append(live, id)
	}
	if len(live) == 0 {
		return
	}

	evalErrs := make(map[int]error, len(live))
	maxPasses := e.n + 1
	stable := false
	for pass := 0; pass < maxPasses && !stable; pass++ {
		stable = true
		for _, id := range live {
			out, err := e.plan.progs[id].Eval(e.evalContext())
			if err != nil {
				out = series.Zeros(e.n)
				evalErrs[id] = err
			} else {
				delete(evalErrs, id)
			}
			if prev, _ := e.env.Resolve(refs.Calc(id)); !out.Equal(prev) {
				stable = false
			}
			e.env.publish(id, out)
		}
	}

	for _, id := range live {
		if err, bad := evalErrs[id]; bad {
			e.fail(id, err.Error())
		} else if !stable {
			e.fail(id, fmt.Sprintf("lagged circular structure did not stabilize after %d passes", maxPasses))
		}
	}
}
