package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrebrook/modelgrid/internal/testutil"
)

func TestPlan_LinearChain(t *testing.T) {
	ctx := testutil.Context(t)

	s := Plan(ctx, []int{3, 1, 2}, map[int][]int{
		2: {1},
		3: {2},
	})

	require.Equal(t, []int{1, 2, 3}, s.Order)
	assert.Empty(t, s.Cyclic)
	assert.Empty(t, s.Skipped)
	assert.Equal(t, [][]int{{1}, {2}, {3}}, s.Levels)
}

func TestPlan_DiamondIsDeterministic(t *testing.T) {
	ctx := testutil.Context(t)

	// 1 feeds 2 and 3, both feed 4. Ties break by ascending ID.
	deps := map[int][]int{
		2: {1},
		3: {1},
		4: {2, 3},
	}
	first := Plan(ctx, []int{4, 3, 2, 1}, deps)
	require.Equal(t, []int{1, 2, 3, 4}, first.Order)
	assert.Equal(t, [][]int{{1}, {2, 3}, {4}}, first.Levels)

	for i := 0; i < 10; i++ {
		again := Plan(ctx, []int{2, 4, 1, 3}, deps)
		require.Equal(t, first.Order, again.Order)
		require.Equal(t, first.Levels, again.Levels)
	}
}

func TestPlan_IndependentRootsReleaseInIDOrder(t *testing.T) {
	ctx := testutil.Context(t)

	s := Plan(ctx, []int{7, 5, 9}, map[int][]int{})

	assert.Equal(t, []int{5, 7, 9}, s.Order)
	assert.Equal(t, [][]int{{5, 7, 9}}, s.Levels)
}

func TestPlan_CycleIsolatedFromRest(t *testing.T) {
	ctx := testutil.Context(t)

	// 1 and 2 form a cycle; 3 is independent and must still evaluate.
	s := Plan(ctx, []int{1, 2, 3}, map[int][]int{
		1: {2},
		2: {1},
	})

	assert.Equal(t, []int{3}, s.Order)
	assert.Equal(t, []int{1, 2}, s.Cyclic)
	assert.Empty(t, s.Skipped)
	assert.Equal(t, "Circular dependency detected: R1, R2", s.CycleMessage())
}

func TestPlan_DownstreamOfCycleSkipped(t *testing.T) {
	ctx := testutil.Context(t)

	// 4 reads the cycle but is not on it; 5 reads 4.
	s := Plan(ctx, []int{1, 2, 4, 5}, map[int][]int{
		1: {2},
		2: {1},
		4: {1},
		5: {4},
	})

	assert.Empty(t, s.Order)
	assert.Equal(t, []int{1, 2}, s.Cyclic)
	assert.Equal(t, []int{4, 5}, s.Skipped)
	assert.Equal(t, "skipped: depends on circular calculation(s): R1, R2", s.SkipMessage())
}

func TestPlan_SelfLoopIsCyclic(t *testing.T) {
	ctx := testutil.Context(t)

	s := Plan(ctx, []int{1, 2}, map[int][]int{
		1: {1},
		2: {1},
	})

	assert.Empty(t, s.Order)
	assert.Equal(t, []int{1}, s.Cyclic)
	assert.Equal(t, []int{2}, s.Skipped)
}

func TestPlan_EdgesToUnknownIDsIgnored(t *testing.T) {
	ctx := testutil.Context(t)

	// 2 reads 99 which is not part of the plan.
	s := Plan(ctx, []int{1, 2}, map[int][]int{
		2: {1, 99},
	})

	assert.Equal(t, []int{1, 2}, s.Order)
	assert.Empty(t, s.Cyclic)
}

func TestPlan_TwoSeparateCycles(t *testing.T) {
	ctx := testutil.Context(t)

	s := Plan(ctx, []int{1, 2, 3, 4, 5}, map[int][]int{
		1: {2},
		2: {1},
		3: {4},
		4: {3},
	})

	assert.Equal(t, []int{5}, s.Order)
	assert.Equal(t, []int{1, 2, 3, 4}, s.Cyclic)
	assert.Empty(t, s.Skipped)
	assert.Equal(t, "Circular dependency detected: R1, R2, R3, R4", s.CycleMessage())
}

func TestComponents(t *testing.T) {
	t.Run("mutual pair plus chain", func(t *testing.T) {
		// 1 and 4 reference each other; 2 feeds 3 independently.
		comps := Components([]int{1, 2, 3, 4}, map[int][]int{
			1: {4},
			4: {1},
			3: {2},
		})
		require.Equal(t, [][]int{{1, 4}, {2}, {3}}, comps)
	})

	t.Run("singletons only", func(t *testing.T) {
		comps := Components([]int{2, 1}, map[int][]int{2: {1}})
		require.Equal(t, [][]int{{1}, {2}}, comps)
	})

	t.Run("self edge stays a singleton", func(t *testing.T) {
		comps := Components([]int{7}, map[int][]int{7: {7}})
		require.Equal(t, [][]int{{7}}, comps)
	})

	t.Run("edges outside the id set are ignored", func(t *testing.T) {
		comps := Components([]int{5, 6}, map[int][]int{
			5: {6, 99},
			6: {5},
		})
		require.Equal(t, [][]int{{5, 6}}, comps)
	})

	t.Run("three-member loop", func(t *testing.T) {
		comps := Components([]int{10, 11, 12, 13}, map[int][]int{
			11: {10},
			10: {12},
			12: {11},
			13: {11},
		})
		require.Equal(t, [][]int{{10, 11, 12}, {13}}, comps)
	})
}
