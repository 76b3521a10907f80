package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValueType(t *testing.T) {
	vt, err := ParseValueType("")
	require.NoError(t, err)
	assert.Equal(t, Flow, vt)

	vt, err = ParseValueType("stock_start")
	require.NoError(t, err)
	assert.Equal(t, StockStart, vt)

	_, err = ParseValueType("balance")
	assert.Error(t, err)
}

func TestParseGroupMode(t *testing.T) {
	m, err := ParseGroupMode("lookup")
	require.NoError(t, err)
	assert.Equal(t, ModeLookup, m)

	_, err = ParseGroupMode("")
	assert.Error(t, err)
}

func TestGroupActive(t *testing.T) {
	assert.False(t, (&Group{Mode: ModeValues}).Active())
	assert.True(t, (&Group{Mode: ModeValues, Inputs: []*Input{{Name: "x"}}}).Active())
	assert.False(t, (&Group{Mode: ModeLookup, Inputs: []*Input{{Name: "x"}}}).Active())
	assert.True(t, (&Group{Mode: ModeLookup, SubGroups: []*SubGroup{{Name: "s"}}}).Active())
}

func TestIDAllocator(t *testing.T) {
	t.Run("sequential", func(t *testing.T) {
		a := NewIDAllocator()
		assert.Equal(t, 1, a.Next())
		assert.Equal(t, 2, a.Next())
	})

	t.Run("claim then skip", func(t *testing.T) {
		a := NewIDAllocator()
		require.True(t, a.Claim(2))
		assert.False(t, a.Claim(2))
		assert.False(t, a.Claim(0))
		assert.Equal(t, 1, a.Next())
		assert.Equal(t, 3, a.Next())
	})

	t.Run("block stays contiguous around claims", func(t *testing.T) {
		a := NewIDAllocator()
		require.True(t, a.Claim(3))
		ids := a.Block(4)
		assert.Equal(t, []int{4, 5, 6, 7}, ids)
		assert.Equal(t, 1, a.Next())
		assert.Equal(t, 2, a.Next())
		assert.Equal(t, 8, a.Next())
	})
}

func TestCalcByID(t *testing.T) {
	r := &Recipe{Calcs: []*Calc{{ID: 1, Name: "a"}, {ID: 7, Name: "b"}}}
	c, ok := r.CalcByID(7)
	require.True(t, ok)
	assert.Equal(t, "b", c.Name)
	_, ok = r.CalcByID(2)
	assert.False(t, ok)
}
