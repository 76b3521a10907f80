// Package recipe holds the compiled, ID-addressed form of a model: the
// structure every engine stage downstream of the compiler consumes. It is
// format-agnostic; the authoring layer produces it and never leaks
// authoring syntax past it.
package recipe

import (
	"fmt"

	"github.com/acrebrook/modelgrid/internal/refs"
	"github.com/acrebrook/modelgrid/internal/timegrid"
)

// ValueType tags what a period array means. Tags are metadata for
// downstream consumers; evaluation ignores them.
type ValueType string

const (
	Flow          ValueType = "flow"
	Stock         ValueType = "stock"
	StockStart    ValueType = "stock_start"
	FlowConverter ValueType = "flow_converter"
	FlagType      ValueType = "flag"
)

// ParseValueType validates an authoring type tag. An empty tag defaults
// to flow.
func ParseValueType(s string) (ValueType, error) {
	switch ValueType(s) {
	case "":
		return Flow, nil
	case Flow, Stock, StockStart, FlowConverter, FlagType:
		return ValueType(s), nil
	}
	return "", fmt.Errorf("unknown value type %q", s)
}

// GroupMode is an input group's addressing mode.
type GroupMode string

const (
	ModeConstant GroupMode = "constant"
	ModeValues   GroupMode = "values"
	ModeSeries   GroupMode = "series"
	ModeLookup   GroupMode = "lookup"
	ModeTiming   GroupMode = "timing"
)

// ParseGroupMode validates an authoring mode tag.
func ParseGroupMode(s string) (GroupMode, error) {
	switch GroupMode(s) {
	case ModeConstant, ModeValues, ModeSeries, ModeLookup, ModeTiming:
		return GroupMode(s), nil
	}
	return "", fmt.Errorf("unknown group mode %q", s)
}

// Recipe is one fully compiled model.
type Recipe struct {
	Name       string
	Grid       *timegrid.Grid
	KeyPeriods []*KeyPeriod
	Indices    []*Index
	Groups     []*Group
	Calcs      []*Calc
	Modules    []*ModuleInstance
	Checks     []*Check

	// ModuleRefs maps positional module output text such as "M1.2" to the
	// calculation ID the expander allocated for it.
	ModuleRefs map[string]int

	// Aliases maps authoring references to positional references for every
	// group whose rank shifts once inactive groups stop counting.
	Aliases refs.AliasTable
}

// KeyPeriod is a named, resolved date range. Start and End are inclusive
// period indexes. Inactive key periods keep all-zero flag arrays.
type KeyPeriod struct {
	ID     int
	Name   string
	Start  int
	End    int
	Active bool
}

// Index is a named escalation series: a factor of one at the base period,
// compounding at an annual rate applied monthly.
type Index struct {
	ID   int
	Name string
	Rate float64
	Base int
}

// Group is one input group.
type Group struct {
	Name      string
	Mode      GroupMode
	Inputs    []*Input
	SubGroups []*SubGroup
}

// Active reports whether the group consumes a positional rank.
func (g *Group) Active() bool {
	if g.Mode == ModeLookup {
		return len(g.SubGroups) > 0
	}
	return len(g.Inputs) > 0
}

// Input is one named input. Value carries constant and timing modes;
// Values carries the sparse period map of values and series modes.
// KeyPeriod and Field bind a timing input onto a key period's duration or
// offset.
type Input struct {
	Name      string
	Value     float64
	Values    map[int]float64
	KeyPeriod string
	Field     string
}

// Timing field names.
const (
	FieldDuration = "duration"
	FieldOffset   = "offset"
)

// SubGroup is one lookup sub-group with a 1-based selected option.
type SubGroup struct {
	Name     string
	Selected int
	Options  []*Option
}

// Option is one lookup option.
type Option struct {
	Name  string
	Value float64
}

// Calc is one calculation. ID is identity, not position. Module names the
// owning module instance for expander-generated calculations, empty for
// authored ones. Solver marks a fixed cell an external optimizer drives.
type Calc struct {
	ID      int
	Name    string
	Formula string
	Type    ValueType
	Solver  bool
	Module  string
}

// ModuleInstance records one template instantiation: its bindings as
// authored and the calculation IDs the expander allocated.
type ModuleInstance struct {
	Name     string
	Template string
	Index    int
	Inputs   map[string]string
	Extras   []*ExtraCalc

	// Outputs maps template output keys to allocated calculation IDs.
	Outputs map[string]int
}

// ExtraCalc is a caller-declared calculation prepended to a module
// instance's allocation block.
type ExtraCalc struct {
	Key     string
	Name    string
	Formula string
	Type    ValueType
}

// CheckKind selects a validation rule's analysis.
type CheckKind string

const (
	CheckBalance  CheckKind = "balance"
	CheckCovenant CheckKind = "covenant"
	CheckIRR      CheckKind = "irr"
)

// ParseCheckKind validates an authoring check kind.
func ParseCheckKind(s string) (CheckKind, error) {
	switch CheckKind(s) {
	case CheckBalance, CheckCovenant, CheckIRR:
		return CheckKind(s), nil
	}
	return "", fmt.Errorf("unknown check kind %q", s)
}

// Check is one validation rule bound to a calculation. Tolerance applies
// to balance checks, Threshold and Active to covenants.
type Check struct {
	Kind      CheckKind
	Name      string
	Target    string
	Tolerance float64
	Threshold float64
	Active    string
}

// CalcByID returns the calculation with the given ID.
func (r *Recipe) CalcByID(id int) (*Calc, bool) {
	for _, c := range r.Calcs {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}
