package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want Ref
	}{
		{"V1.3", Ref{Kind: KindValues, A: 1, B: 3}},
		{"S2.10", Ref{Kind: KindSeries, A: 2, B: 10}},
		{"C1.19", Ref{Kind: KindConstant, A: 1, B: 19}},
		{"C3", Ref{Kind: KindConstant, A: 3}},
		{"L1.2", Ref{Kind: KindLookup, A: 1, B: 2}},
		{"L1.2.1", Ref{Kind: KindLookup, A: 1, B: 2, C: 1}},
		{"F7", Ref{Kind: KindFlag, A: 7}},
		{"F7.Start", Ref{Kind: KindFlag, A: 7, Suffix: SuffixStart}},
		{"F7.End", Ref{Kind: KindFlag, A: 7, Suffix: SuffixEnd}},
		{"I2", Ref{Kind: KindIndex, A: 2}},
		{"T.DiM", Ref{Kind: KindTime, Key: "DiM"}},
		{"R195", Ref{Kind: KindCalc, A: 195}},
		{"M3.1", Ref{Kind: KindModule, A: 3, B: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			r, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, r)
			assert.Equal(t, tc.in, r.String())
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"", "X1", "V", "V0", "V1.0", "V1.2.3", "F1.Middle", "F1.start",
		"T.", "T.Di-M", "M3", "R", "L1.2.3.4", "1.2", "v1.2",
	}
	for _, s := range bad {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			assert.Error(t, err, "expected %q to be rejected", s)
		})
	}
}

func TestExtract(t *testing.T) {
	t.Run("finds every category", func(t *testing.T) {
		src := "IF(F2, (V1.3 + S2.10) * C1.19 / L1.2.1, R195 + M3.1 * I2 * T.DiM)"
		got := ExtractUnique(src)
		var texts []string
		for _, r := range got {
			texts = append(texts, r.String())
		}
		assert.ElementsMatch(t, []string{
			"F2", "V1.3", "S2.10", "C1.19", "L1.2.1", "R195", "M3.1", "I2", "T.DiM",
		}, texts)
	})

	t.Run("ignores function names and placeholders", func(t *testing.T) {
		src := "MAX(MIN(ABS($input.need), {Fixed Costs}), CUMSUM(R1))"
		got := ExtractUnique(src)
		require.Len(t, got, 1)
		assert.Equal(t, "R1", got[0].String())
	})

	t.Run("keeps flag suffixes", func(t *testing.T) {
		got := ExtractUnique("F1.Start - F1.End + F1")
		var texts []string
		for _, r := range got {
			texts = append(texts, r.String())
		}
		assert.Equal(t, []string{"F1.Start", "F1.End", "F1"}, texts)
	})

	t.Run("deduplicates preserving order", func(t *testing.T) {
		got := ExtractUnique("R1 + R2 + R1")
		require.Len(t, got, 2)
		assert.Equal(t, "R1", got[0].String())
		assert.Equal(t, "R2", got[1].String())
	})
}

func TestAliasTable(t *testing.T) {
	tbl := AliasTable{
		"V2":   "V1",
		"V2.1": "V1.1",
		"V2.2": "V1.2",
	}
	assert.Equal(t, "V1.2", tbl.Resolve("V2.2"))
	assert.Equal(t, "C1.1", tbl.Resolve("C1.1"))

	sorted := tbl.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, Alias{Authored: "V2", Positional: "V1"}, sorted[0])
	assert.Equal(t, Alias{Authored: "V2.1", Positional: "V1.1"}, sorted[1])
}

func TestCompare(t *testing.T) {
	v11, _ := Parse("V1.1")
	v12, _ := Parse("V1.2")
	r1, _ := Parse("R1")
	assert.Negative(t, Compare(v11, v12))
	assert.Negative(t, Compare(v12, r1))
	assert.Zero(t, Compare(v11, v11))
}
