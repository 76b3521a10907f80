package integration_tests

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrebrook/modelgrid/internal/engine"
	"github.com/acrebrook/modelgrid/internal/modeltest"
)

// A two-phase project: spend during the build window, rent once
// operations start. Exercises key-period anchoring, flag windowing,
// constant and month-keyed inputs, and a passing balance check.
func TestCoreExecution_PhasedSchedule(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	modelHCL := `
model "Phased" {
  timeline {
    start  = "Jan 2026"
    months = 6
  }
}

key_period "Build" {
  start    = "Jan 2026"
  duration = "2 months"
}
key_period "Ops" {
  after    = "Build"
  duration = "4 months"
}

input_group "Commercial" {
  mode = "constant"

  input "Rent" {
    value = 100
  }
}

input_group "Capex Plan" {
  mode = "values"

  input "Capex" {
    values = {
      "Jan 2026" = 50
      "Feb 2026" = 30
    }
  }
}

calc_group "Schedule" {
  calc "Opex" {
    formula = "{Rent} * F2"
  }
  calc "Spend" {
    formula = "{Capex} * F1"
  }
  calc "Cumulative Spend" {
    formula = "CUMSUM({Spend})"
    type    = "stock"
  }
  calc "Total" {
    formula = "{Opex} + {Spend}"
  }
  calc "Residual" {
    formula = "{Total} - {Opex} - {Spend}"
  }
}

check "balance" {
  name = "total ties out"
  calc = "{Residual}"
}
`
	files := map[string]string{"phased.hcl": modelHCL}

	// --- Act ---
	out := modeltest.Run(t, files, nil, engine.Options{})

	// --- Assert ---
	require.NoError(t, out.Err)
	require.False(t, out.Diags.HasErrors(), "diagnostics: %v", out.Diags)

	want := map[string][]float64{
		"F1":       {1, 1, 0, 0, 0, 0},
		"F1.Start": {1, 0, 0, 0, 0, 0},
		"F1.End":   {0, 1, 0, 0, 0, 0},
		"F2":       {0, 0, 1, 1, 1, 1},
		"F2.End":   {0, 0, 0, 0, 0, 1},
		"R1":       {0, 0, 100, 100, 100, 100},
		"R2":       {50, 30, 0, 0, 0, 0},
		"R3":       {50, 80, 80, 80, 80, 80},
		"R4":       {50, 30, 100, 100, 100, 100},
		"R5":       {0, 0, 0, 0, 0, 0},
	}
	for ref, expected := range want {
		if diff := cmp.Diff(expected, []float64(out.Series(t, ref))); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", ref, diff)
		}
	}

	for _, c := range out.Result.Calcs {
		assert.False(t, c.Failed(), "R%d %s failed: %s", c.ID, c.Name, c.Err)
	}

	require.Len(t, out.Result.Checks, 1)
	check := out.Result.Checks[0]
	assert.True(t, check.Passed)
	assert.False(t, check.Undetermined)
	assert.Equal(t, "total ties out", check.Name)
}

// An escalation index is 1 at its base month and exactly 1+rate twelve
// months later; between the two it grows monthly.
func TestCoreExecution_IndexEscalation(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	modelHCL := `
model "Escalated" {
  timeline {
    start  = "Jan 2026"
    months = 13
  }
}

index "CPI" {
  rate = 0.1
}

calc_group "Core" {
  calc "Curve" {
    formula = "I1"
  }
}
`
	files := map[string]string{"escalated.hcl": modelHCL}

	// --- Act ---
	out := modeltest.Run(t, files, nil, engine.Options{})

	// --- Assert ---
	require.NoError(t, out.Err)
	curve := out.Series(t, "R1")
	require.Len(t, curve, 13)
	assert.Equal(t, 1.0, curve[0])
	assert.Equal(t, 1.1, curve[12])
	for i := 1; i < len(curve); i++ {
		assert.Greater(t, curve[i], curve[i-1], "factor must grow every month")
	}
}
