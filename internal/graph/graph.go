// Package graph orders calculations for evaluation. Dependencies are
// same-period reads of other calculations; lag-wrapped reads do not
// count. Cycles never abort a run: their members are isolated, their
// dependents skipped, and everything else still evaluates.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/acrebrook/modelgrid/internal/ctxlog"
)

// Schedule is the outcome of planning one recipe's calculations.
type Schedule struct {
	// Order lists evaluable calculation IDs in dependency order. Kahn's
	// algorithm with a FIFO ready queue seeded and released in ascending
	// ID order makes it a deterministic total order.
	Order []int

	// Levels groups Order by depth (longest path from a root), so one
	// level's calculations can evaluate concurrently.
	Levels [][]int

	// Cyclic lists calculations on a dependency cycle, ascending.
	Cyclic []int

	// Skipped lists calculations that are not on a cycle themselves but
	// depend on one, ascending.
	Skipped []int
}

// Plan schedules the calculations in ids. deps maps a calculation to the
// calculations it reads in the same period; edges to IDs outside ids are
// ignored.
func Plan(ctx context.Context, ids []int, deps map[int][]int) *Schedule {
	logger := ctxlog.FromContext(ctx)

	present := make(map[int]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	indeg := make(map[int]int, len(sorted))
	dependents := make(map[int][]int, len(sorted))
	depsIn := make(map[int][]int, len(sorted))
	for _, id := range sorted {
		for _, d := range deps[id] {
			if !present[d] {
				continue
			}
			indeg[id]++
			dependents[d] = append(dependents[d], id)
			depsIn[id] = append(depsIn[id], d)
		}
	}
	for _, list := range dependents {
		sort.Ints(list)
	}

	var queue []int
	for _, id := range sorted {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}

	s := &Schedule{}
	level := make(map[int]int, len(sorted))
	done := make(map[int]bool, len(sorted))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		s.Order = append(s.Order, id)
		done[id] = true
		for _, child := range dependents[id] {
			if lv := level[id] + 1; lv > level[child] {
				level[child] = lv
			}
			indeg[child]--
			if indeg[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	for _, id := range s.Order {
		for len(s.Levels) <= level[id] {
			s.Levels = append(s.Levels, nil)
		}
		s.Levels[level[id]] = append(s.Levels[level[id]], id)
	}

	if len(s.Order) < len(sorted) {
		var leftover []int
		for _, id := range sorted {
			if !done[id] {
				leftover = append(leftover, id)
			}
		}
		s.Cyclic, s.Skipped = splitCycleMembers(leftover, depsIn)
		logger.DebugContext(ctx, "Cycle isolation engaged.",
			"cyclic", len(s.Cyclic), "skipped", len(s.Skipped))
	}

	logger.DebugContext(ctx, "Calculation schedule planned.",
		"ordered", len(s.Order), "levels", len(s.Levels))
	return s
}

// splitCycleMembers separates true cycle members from calculations that
// are merely downstream of one, using strongly connected components of
// the leftover subgraph.
func splitCycleMembers(leftover []int, depsIn map[int][]int) (cyclic, skipped []int) {
	in := make(map[int]bool, len(leftover))
	for _, id := range leftover {
		in[id] = true
	}

	index := make(map[int]int)
	low := make(map[int]int)
	onStack := make(map[int]bool)
	var stack []int
	next := 0
	isCyclic := make(map[int]bool)

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		self := false
		for _, w := range depsIn[v] {
			if !in[w] {
				continue
			}
			if w == v {
				self = true
				continue
			}
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 || self {
				for _, w := range comp {
					isCyclic[w] = true
				}
			}
		}
	}

	for _, id := range leftover {
		if _, seen := index[id]; !seen {
			strongconnect(id)
		}
	}

	for _, id := range leftover {
		if isCyclic[id] {
			cyclic = append(cyclic, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	sort.Ints(cyclic)
	sort.Ints(skipped)
	return cyclic, skipped
}

// Components returns the strongly connected components of the dependency
// graph over ids, each sorted ascending, listed by smallest member.
// Edges to IDs outside ids are ignored. Singletons are components too;
// callers deciding whether a component is recurrent must check for
// self-edges themselves.
func Components(ids []int, deps map[int][]int) [][]int {
	present := make(map[int]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	edges := make(map[int][]int, len(sorted))
	for _, id := range sorted {
		for _, d := range deps[id] {
			if present[d] && d != id {
				edges[id] = append(edges[id], d)
			}
		}
		sort.Ints(edges[id])
	}

	index := make(map[int]int, len(sorted))
	low := make(map[int]int, len(sorted))
	onStack := make(map[int]bool, len(sorted))
	var stack []int
	next := 0
	var comps [][]int

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Ints(comp)
			comps = append(comps, comp)
		}
	}

	for _, id := range sorted {
		if _, seen := index[id]; !seen {
			strongconnect(id)
		}
	}

	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

// CycleMessage renders the error reported on every cycle member.
func (s *Schedule) CycleMessage() string {
	return "Circular dependency detected: " + refList(s.Cyclic)
}

// SkipMessage renders the error reported on calculations downstream of a
// cycle.
func (s *Schedule) SkipMessage() string {
	return "skipped: depends on circular calculation(s): " + refList(s.Cyclic)
}

func refList(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("R%d", id)
	}
	return strings.Join(parts, ", ")
}
