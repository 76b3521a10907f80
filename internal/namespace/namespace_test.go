package namespace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
	"github.com/acrebrook/modelgrid/internal/series"
	"github.com/acrebrook/modelgrid/internal/testutil"
	"github.com/acrebrook/modelgrid/internal/timegrid"
)

func grid(t *testing.T, start timegrid.Month, months int) *timegrid.Grid {
	t.Helper()
	g, err := timegrid.New(start, months)
	require.NoError(t, err)
	return g
}

func resolve(t *testing.T, ns *Namespace, ref string) series.Series {
	t.Helper()
	r, err := refs.Parse(ref)
	require.NoError(t, err)
	s, ok := ns.Resolve(r)
	require.True(t, ok, "reference %s not found", ref)
	return s
}

func TestBuildFlags(t *testing.T) {
	g := grid(t, timegrid.Month{Year: 2026, Mon: time.January}, 6)
	rec := &recipe.Recipe{
		Grid: g,
		KeyPeriods: []*recipe.KeyPeriod{
			{ID: 1, Name: "Construction", Start: 1, End: 3, Active: true},
			{ID: 2, Name: "Unanchored", Active: false},
		},
	}
	ns, diags, err := Build(testutil.Context(t), rec)
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.Equal(t, series.Series{0, 1, 1, 1, 0, 0}, resolve(t, ns, "F1"))
	assert.Equal(t, series.Series{0, 1, 0, 0, 0, 0}, resolve(t, ns, "F1.Start"))
	assert.Equal(t, series.Series{0, 0, 0, 1, 0, 0}, resolve(t, ns, "F1.End"))

	// Inactive key periods still define their flags, zero-filled.
	assert.Equal(t, series.Zeros(6), resolve(t, ns, "F2"))
	assert.Equal(t, series.Zeros(6), resolve(t, ns, "F2.Start"))
}

func TestBuildTimeConstants(t *testing.T) {
	// Jan 2024 .. Mar 2024: a leap year.
	g := grid(t, timegrid.Month{Year: 2024, Mon: time.January}, 3)
	ns, diags, err := Build(testutil.Context(t), &recipe.Recipe{Grid: g})
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.Equal(t, series.Series{31, 29, 31}, resolve(t, ns, "T.DiM"))
	assert.Equal(t, series.Series{366, 366, 366}, resolve(t, ns, "T.DiY"))
	assert.Equal(t, series.Series{91, 91, 91}, resolve(t, ns, "T.DiQ"))
	assert.Equal(t, series.Constant(12, 3), resolve(t, ns, "T.MiY"))
	assert.Equal(t, series.Constant(4, 3), resolve(t, ns, "T.QiY"))
	assert.Equal(t, series.Constant(3, 3), resolve(t, ns, "T.MiQ"))
	assert.Equal(t, series.Constant(24, 3), resolve(t, ns, "T.HiD"))
	assert.Equal(t, series.Series{744, 696, 744}, resolve(t, ns, "T.HiM"))

	wiy := resolve(t, ns, "T.WiY")
	assert.InDelta(t, 366.0/7, wiy[0], 1e-12)

	e, ok := ns.Entry(refs.Time("DiM"))
	require.True(t, ok)
	assert.Equal(t, recipe.FlowConverter, e.Type)
}

func TestBuildIndexFactors(t *testing.T) {
	g := grid(t, timegrid.Month{Year: 2026, Mon: time.January}, 25)
	rec := &recipe.Recipe{
		Grid: g,
		Indices: []*recipe.Index{
			{ID: 1, Name: "CPI", Rate: 0.025, Base: 0},
			{ID: 2, Name: "Flat", Rate: 0, Base: 0},
		},
	}
	ns, _, err := Build(testutil.Context(t), rec)
	require.NoError(t, err)

	cpi := resolve(t, ns, "I1")
	assert.InDelta(t, 1.0, cpi[0], 1e-12)
	assert.InDelta(t, 1.025, cpi[12], 1e-9)
	assert.InDelta(t, 1.025*1.025, cpi[24], 1e-9)

	assert.Equal(t, series.Constant(1, 25), resolve(t, ns, "I2"))
}

func TestBuildGroups(t *testing.T) {
	g := grid(t, timegrid.Month{Year: 2026, Mon: time.January}, 4)
	rec := &recipe.Recipe{
		Grid: g,
		Groups: []*recipe.Group{
			{Name: "Opex", Mode: recipe.ModeConstant, Inputs: []*recipe.Input{
				{Name: "Fixed", Value: 120},
				{Name: "Variable", Value: 3.5},
			}},
			{Name: "Empty", Mode: recipe.ModeValues},
			{Name: "Tariff", Mode: recipe.ModeValues, Inputs: []*recipe.Input{
				{Name: "PPA", Values: map[int]float64{1: 50, 3: 60}},
			}},
			{Name: "Headcount", Mode: recipe.ModeSeries, Inputs: []*recipe.Input{
				{Name: "Ops", Values: map[int]float64{1: 2, 3: 5}},
			}},
		},
	}
	ns, diags, err := Build(testutil.Context(t), rec)
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.Equal(t, series.Constant(120, 4), resolve(t, ns, "C1.1"))
	assert.Equal(t, series.Constant(3.5, 4), resolve(t, ns, "C1.2"))

	// The empty values group is inactive, so Tariff takes rank V1.
	assert.Equal(t, series.Series{0, 50, 0, 60}, resolve(t, ns, "V1.1"))

	// Series inputs persist until the next entered month.
	assert.Equal(t, series.Series{0, 2, 2, 5}, resolve(t, ns, "S1.1"))

	r, _ := refs.Parse("V2.1")
	_, ok := ns.Resolve(r)
	assert.False(t, ok)
}

func TestBuildLookups(t *testing.T) {
	g := grid(t, timegrid.Month{Year: 2026, Mon: time.January}, 2)
	rec := &recipe.Recipe{
		Grid: g,
		Groups: []*recipe.Group{
			{Name: "Sizing", Mode: recipe.ModeLookup, SubGroups: []*recipe.SubGroup{
				{Name: "Panel", Selected: 2, Options: []*recipe.Option{
					{Name: "Mono", Value: 410},
					{Name: "Poly", Value: 380},
				}},
				{Name: "Broken", Selected: 5, Options: []*recipe.Option{
					{Name: "Only", Value: 1},
				}},
			}},
		},
	}
	ns, diags, err := Build(testutil.Context(t), rec)
	require.NoError(t, err)

	assert.Equal(t, series.Constant(380, 2), resolve(t, ns, "L1.1"))
	assert.Equal(t, series.Constant(410, 2), resolve(t, ns, "L1.1.1"))
	assert.Equal(t, series.Constant(380, 2), resolve(t, ns, "L1.1.2"))

	// The out-of-range selection resolves to zero and warns.
	assert.Equal(t, series.Zeros(2), resolve(t, ns, "L1.2"))
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Summary, "out of range")
}

func TestScanRanks(t *testing.T) {
	rec := &recipe.Recipe{
		Groups: []*recipe.Group{
			{Name: "Dates", Mode: recipe.ModeTiming, Inputs: []*recipe.Input{{Name: "d"}}},
			{Name: "A", Mode: recipe.ModeValues},
			{Name: "B", Mode: recipe.ModeValues, Inputs: []*recipe.Input{{Name: "x"}}},
			{Name: "C", Mode: recipe.ModeConstant, Inputs: []*recipe.Input{{Name: "y"}}},
		},
	}
	ranks := ScanRanks(rec)
	require.Len(t, ranks, 3)

	// Constants scan before values, and timing mints no prefix.
	assert.Equal(t, "C", ranks[0].Group.Name)
	assert.Equal(t, refs.KindConstant, ranks[0].Kind)
	assert.Equal(t, 1, ranks[0].Pos)

	assert.Equal(t, "A", ranks[1].Group.Name)
	assert.False(t, ranks[1].Active)
	assert.Equal(t, 0, ranks[1].Pos)
	assert.Equal(t, 1, ranks[1].Authored)

	assert.Equal(t, "B", ranks[2].Group.Name)
	assert.Equal(t, 1, ranks[2].Pos)
	assert.Equal(t, 2, ranks[2].Authored)
}

func TestList(t *testing.T) {
	g := grid(t, timegrid.Month{Year: 2026, Mon: time.January}, 2)
	rec := &recipe.Recipe{
		Grid: g,
		KeyPeriods: []*recipe.KeyPeriod{
			{ID: 1, Name: "Ops", Start: 0, End: 1, Active: true},
		},
	}
	ns, _, err := Build(testutil.Context(t), rec)
	require.NoError(t, err)

	list := ns.List()
	assert.Equal(t, ns.Len(), len(list))
	// Flags sort before time constants.
	assert.Equal(t, "F1", list[0].Ref.String())
	assert.Equal(t, "F1.Start", list[1].Ref.String())
	assert.Equal(t, "F1.End", list[2].Ref.String())
}
