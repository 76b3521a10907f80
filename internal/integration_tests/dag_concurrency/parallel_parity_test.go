package integration_tests

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrebrook/modelgrid/internal/engine"
	"github.com/acrebrook/modelgrid/internal/modeltest"
)

// wideModel fans out from two constants, joins, chains through array
// functions, and carries a recurrent pair, so a parallel run has
// several units in flight per level.
const wideModel = `
model "Wide" {
  timeline {
    start  = "Jan 2026"
    months = 5
  }
}

input_group "Drivers" {
  mode = "constant"

  input "A" {
    value = 3
  }
  input "B" {
    value = 5
  }
}

calc_group "Fan" {
  calc "Wide One" {
    formula = "{A} * 2"
  }
  calc "Wide Two" {
    formula = "{A} + {B}"
  }
  calc "Wide Three" {
    formula = "{B} * {B}"
  }
  calc "Join Four" {
    formula = "{Wide One} + {Wide Two}"
  }
  calc "Join Five" {
    formula = "{Wide Two} * {Wide Three}"
  }
  calc "Peak" {
    formula = "MAX({Join Four}, {Join Five})"
  }
  calc "Running" {
    formula = "CUMSUM({Peak})"
    type    = "stock"
  }
  calc "Lagged" {
    formula = "SHIFT({Running}, 1)"
  }
}

calc_group "Pool" {
  calc "Pool Opening" {
    formula = "SHIFT({Pool Closing}, 1)"
    type    = "stock_start"
  }
  calc "Pool Closing" {
    formula = "{Pool Opening} + {Wide One}"
    type    = "stock"
  }
}
`

func TestDagConcurrency_ParallelMatchesSequential(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	files := map[string]string{"wide.hcl": wideModel}

	// --- Act ---
	sequential := modeltest.Run(t, files, nil, engine.Options{Workers: 1})
	parallel := modeltest.Run(t, files, nil, engine.Options{Workers: 8})

	// --- Assert ---
	require.NoError(t, sequential.Err)
	require.NoError(t, parallel.Err)

	collect := func(o *modeltest.Outcome) map[int][]float64 {
		out := make(map[int][]float64, len(o.Result.Calcs))
		for _, c := range o.Result.Calcs {
			require.False(t, c.Failed(), "R%d %s failed: %s", c.ID, c.Name, c.Err)
			out[c.ID] = c.Values
		}
		return out
	}
	if diff := cmp.Diff(collect(sequential), collect(parallel)); diff != "" {
		t.Errorf("parallel run diverged from sequential (-sequential +parallel):\n%s", diff)
	}
	assert.Equal(t, sequential.Result.Order, parallel.Result.Order)
}

func TestDagConcurrency_OrderRespectsDependencies(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	files := map[string]string{"wide.hcl": wideModel}

	// --- Act ---
	out := modeltest.Run(t, files, nil, engine.Options{Workers: 4})

	// --- Assert ---
	require.NoError(t, out.Err)
	order := out.Result.Order
	require.Len(t, order, 10)

	pos := make(map[int]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	after := func(late, early int) {
		t.Helper()
		assert.Greater(t, pos[late], pos[early], "R%d must evaluate after R%d", late, early)
	}
	after(4, 1)
	after(4, 2)
	after(5, 2)
	after(5, 3)
	after(6, 4)
	after(6, 5)
	after(7, 6)
	// A lagged read still orders: Lagged waits for Running to finish.
	after(8, 7)
	// The recurrent pool pair follows its outside feed and keeps its
	// internal hard order.
	after(9, 1)
	after(10, 9)

	// The settled pool is a running total of Wide One.
	if diff := cmp.Diff([]float64{6, 12, 18, 24, 30}, []float64(out.Series(t, "R10"))); diff != "" {
		t.Errorf("pool closing mismatch (-want +got):\n%s", diff)
	}
}
