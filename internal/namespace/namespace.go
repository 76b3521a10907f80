// Package namespace builds and serves the symbolic reference table of a
// compiled recipe: every input by positional prefix, the key-period
// flags, escalation index factors, and the calendar time constants, each
// bound to a full-horizon period array and a value type.
package namespace

import (
	"sort"

	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
	"github.com/acrebrook/modelgrid/internal/series"
	"github.com/acrebrook/modelgrid/internal/timegrid"
)

// Entry is one addressable value.
type Entry struct {
	Values series.Series
	Type   recipe.ValueType
}

// Namespace is the immutable reference table of one compiled recipe.
// Calculation results are not entered here; the engine overlays them
// during evaluation.
type Namespace struct {
	grid    *timegrid.Grid
	entries map[string]Entry
}

// Grid returns the timeline the namespace was built over.
func (ns *Namespace) Grid() *timegrid.Grid { return ns.grid }

// Len reports the number of entries.
func (ns *Namespace) Len() int { return len(ns.entries) }

// Resolve looks up a reference.
func (ns *Namespace) Resolve(r refs.Ref) (series.Series, bool) {
	e, ok := ns.entries[r.String()]
	if !ok {
		return nil, false
	}
	return e.Values, true
}

// Entry looks up a reference together with its value type.
func (ns *Namespace) Entry(r refs.Ref) (Entry, bool) {
	e, ok := ns.entries[r.String()]
	return e, ok
}

// Binding pairs a reference with its entry for listings.
type Binding struct {
	Ref   refs.Ref
	Entry Entry
}

// List returns every binding in stable reference order.
func (ns *Namespace) List() []Binding {
	out := make([]Binding, 0, len(ns.entries))
	for key, e := range ns.entries {
		r, err := refs.Parse(key)
		if err != nil {
			continue
		}
		out = append(out, Binding{Ref: r, Entry: e})
	}
	sort.Slice(out, func(i, j int) bool {
		return refs.Compare(out[i].Ref, out[j].Ref) < 0
	})
	return out
}

func (ns *Namespace) put(r refs.Ref, values series.Series, vt recipe.ValueType) {
	ns.entries[r.String()] = Entry{Values: values, Type: vt}
}
