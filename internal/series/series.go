// Package series implements the fixed-length monthly value arrays that all
// model arithmetic runs over, plus the whole-array transforms backing the
// pre-pass formula functions.
package series

// Series is one value per period over the model horizon.
type Series []float64

// Zeros returns an all-zero series of length n.
func Zeros(n int) Series {
	return make(Series, n)
}

// Constant returns a series of length n holding v in every period.
func Constant(v float64, n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// Clone returns an independent copy of s.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Equal reports whether s and other hold identical values, position by
// position.
func (s Series) Equal(other Series) bool {
	if len(s) != len(other) {
		return false
	}
	for i, v := range s {
		if v != other[i] {
			return false
		}
	}
	return true
}

// CumSum returns the running sum of x from period 0.
func CumSum(x Series) Series {
	out := make(Series, len(x))
	acc := 0.0
	for t, v := range x {
		acc += v
		out[t] = acc
	}
	return out
}

// CumProd returns the running product of x from period 0.
func CumProd(x Series) Series {
	out := make(Series, len(x))
	acc := 1.0
	for t, v := range x {
		acc *= v
		out[t] = acc
	}
	return out
}

// CumSumReset returns the running sum of x, restarting the accumulator at
// every period where reset is true.
func CumSumReset(x Series, reset []bool) Series {
	out := make(Series, len(x))
	acc := 0.0
	for t, v := range x {
		if reset[t] {
			acc = 0
		}
		acc += v
		out[t] = acc
	}
	return out
}

// CumProdReset returns the running product of x, restarting the accumulator
// at every period where reset is true.
func CumProdReset(x Series, reset []bool) Series {
	out := make(Series, len(x))
	acc := 1.0
	for t, v := range x {
		if reset[t] {
			acc = 1
		}
		acc *= v
		out[t] = acc
	}
	return out
}

// Shift returns x displaced n periods forward in time: period t reads the
// value from period t-n. Periods before the horizon read zero.
func Shift(x Series, n int) Series {
	out := make(Series, len(x))
	for t := range x {
		if t-n >= 0 && t-n < len(x) {
			out[t] = x[t-n]
		}
	}
	return out
}

// MaxVal broadcasts the maximum of x over the whole horizon to every
// period. An empty series stays empty.
func MaxVal(x Series) Series {
	out := make(Series, len(x))
	if len(x) == 0 {
		return out
	}
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	for t := range out {
		out[t] = max
	}
	return out
}

// FwdSum returns, per period, the sum of x over the current and next n-1
// periods. Periods past the horizon contribute zero.
func FwdSum(x Series, n int) Series {
	out := make(Series, len(x))
	for t := range x {
		acc := 0.0
		for i := t; i < t+n && i < len(x); i++ {
			acc += x[i]
		}
		out[t] = acc
	}
	return out
}
