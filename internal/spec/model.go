package spec

// Model is the unified authoring representation of one financial model:
// everything the compiler needs to produce a recipe.
type Model struct {
	Name       string
	Timeline   *Timeline
	KeyPeriods []*KeyPeriod
	Indices    []*Index
	Groups     []*InputGroup
	CalcGroups []*CalcGroup
	Modules    []*Module
	Checks     []*Check
}

// Timeline bounds the model: a start month and a period count.
type Timeline struct {
	Start  string
	Months int
}

// KeyPeriod declares a named date range. Exactly one of Start, After, or
// With anchors it: Start is an absolute month, After starts the month
// following the named period's end, With starts the month the named
// period starts. Offset shifts the anchored start by whole months.
type KeyPeriod struct {
	Name     string
	Start    string
	After    string
	With     string
	Offset   int
	Duration string
}

// Index declares an escalation curve with an annual rate. Base is the
// month the factor equals one; the timeline start when empty.
type Index struct {
	Name string
	Rate float64
	Base string
}

// InputGroup is a named collection of inputs sharing one addressing mode
// (constant, values, series, lookup, or timing).
type InputGroup struct {
	Name      string
	Mode      string
	Inputs    []*Input
	SubGroups []*SubGroup
}

// Input is one named input. Value serves constant and timing modes;
// Values maps authoring months to amounts for the values and series
// modes. KeyPeriod and Field bind a timing input onto a key period's
// duration or offset.
type Input struct {
	Name      string
	Value     float64
	Values    map[string]float64
	KeyPeriod string
	Field     string
}

// SubGroup is one lookup sub-group: a set of candidate options with a
// 1-based selected index.
type SubGroup struct {
	Name     string
	Selected int
	Options  []*Option
}

// Option is one lookup candidate.
type Option struct {
	Name  string
	Value float64
}

// CalcGroup is a named collection of calculations. Grouping is an
// authoring convenience; compiled calculations are a flat ID space.
type CalcGroup struct {
	Name  string
	Calcs []*Calc
}

// Calc is one authored calculation. A non-zero ID pins the calculation's
// R number; otherwise the compiler assigns the next free one.
type Calc struct {
	ID      int
	Name    string
	Formula string
	Type    string
}

// Module instantiates a template under a name, binding template inputs
// to literal or reference text and optionally declaring extra
// calculations expanded into the instance's ID block.
type Module struct {
	Name     string
	Template string
	Inputs   map[string]string
	Extras   []*ExtraCalc
}

// ExtraCalc is one caller-declared calculation inside a module block.
type ExtraCalc struct {
	Key     string
	Name    string
	Formula string
	Type    string
}

// Check binds a validation rule to a calculation. Tolerance applies to
// balance checks; Threshold and Active to covenants.
type Check struct {
	Kind      string
	Name      string
	Calc      string
	Tolerance float64
	Threshold float64
	Active    string
}
