package formula

import "github.com/acrebrook/modelgrid/internal/series"

// scalarSpec describes a per-period function. A negative arity means "at
// least that many" arguments.
type scalarSpec struct {
	arity int
}

var scalarFuncs = map[string]scalarSpec{
	"ABS": {arity: 1},
	"IF":  {arity: 3},
	"MIN": {arity: -2},
	"MAX": {arity: -2},
}

// arraySpec describes a whole-array function. Functions with hasCount take
// a second argument that must be an integer literal; minCount bounds it.
type arraySpec struct {
	hasCount bool
	minCount int
	lag      bool
	apply    func(x series.Series, count int, yearStart []bool) series.Series
}

var arrayFuncs = map[string]arraySpec{
	"CUMSUM": {
		apply: func(x series.Series, _ int, _ []bool) series.Series { return series.CumSum(x) },
	},
	"CUMPROD": {
		apply: func(x series.Series, _ int, _ []bool) series.Series { return series.CumProd(x) },
	},
	"CUMSUM_Y": {
		apply: func(x series.Series, _ int, ys []bool) series.Series { return series.CumSumReset(x, ys) },
	},
	"CUMPROD_Y": {
		apply: func(x series.Series, _ int, ys []bool) series.Series { return series.CumProdReset(x, ys) },
	},
	"SHIFT": {
		hasCount: true,
		minCount: 0,
		lag:      true,
		apply:    func(x series.Series, n int, _ []bool) series.Series { return series.Shift(x, n) },
	},
	"PREVVAL": {
		lag:   true,
		apply: func(x series.Series, _ int, _ []bool) series.Series { return series.Shift(x, 1) },
	},
	"MAXVAL": {
		apply: func(x series.Series, _ int, _ []bool) series.Series { return series.MaxVal(x) },
	},
	"FWDSUM": {
		hasCount: true,
		minCount: 1,
		apply:    func(x series.Series, n int, _ []bool) series.Series { return series.FwdSum(x, n) },
	},
}
