package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acrebrook/modelgrid/internal/series"
)

func writeModel(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// execute runs one command line against fresh buffers.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errW := &bytes.Buffer{}
	cmd := New(out, errW)
	err := cmd.Run(context.Background(), append([]string{"modelgrid"}, args...))
	return out.String(), errW.String(), err
}

const demoModel = `
model "Demo" {
  timeline {
    start  = "Jan 2026"
    months = 3
  }
}

input_group "Opex" {
  mode = "constant"

  input "Base" {
    value = 42
  }
}

calc_group "Core" {
  calc "Double" {
    formula = "{Base} * 2"
  }
  calc "Triple" {
    formula = "{Base} * 3"
  }
  calc "Zero" {
    formula = "{Double} - {Double}"
  }
}

check "balance" {
  calc = "{Zero}"
}
`

func TestRun_Table(t *testing.T) {
	path := writeModel(t, demoModel)

	out, errW, err := execute(t, "run", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Demo: 3 period(s), Jan 2026 .. Mar 2026")
	assert.Contains(t, out, "R1 Double")
	assert.Contains(t, out, "R2 Triple")
	assert.Contains(t, out, "Jan 2026")
	assert.Contains(t, out, "84")
	assert.Contains(t, out, "126")
	assert.Contains(t, out, "checks:")
	assert.Contains(t, out, "pass")
	assert.NotContains(t, out, "failed calculations:")
	// Logs stay off stdout.
	assert.Contains(t, errW, "Model evaluated.")
}

func TestRun_CSV(t *testing.T) {
	path := writeModel(t, demoModel)

	out, _, err := execute(t, "run", "--csv", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "period,R1 Double,R2 Triple,R3 Zero", lines[0])
	assert.Equal(t, "Jan 2026,84,126,0", lines[1])
	assert.Equal(t, "Mar 2026,84,126,0", lines[3])
}

func TestRun_WorkersZeroUsesEveryCPU(t *testing.T) {
	path := writeModel(t, demoModel)

	out, _, err := execute(t, "run", "--workers", "0", "--csv", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Jan 2026,84,126,0")
}

const brokenModel = `
model "Broken" {
  timeline {
    start  = "Jan 2026"
    months = 2
  }
}

calc_group "Core" {
  calc "Bad" {
    formula = "{Missing} + 1"
  }
  calc "Fine" {
    formula = "5"
  }
}
`

func TestRun_StrictAndLenient(t *testing.T) {
	path := writeModel(t, brokenModel)

	t.Run("strict refuses to evaluate", func(t *testing.T) {
		_, errW, err := execute(t, "run", "--strict", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "strict mode")
		assert.Contains(t, errW, "Unknown reference(s)")
	})

	t.Run("lenient evaluates what compiled", func(t *testing.T) {
		out, _, err := execute(t, "run", path)
		require.NoError(t, err)
		assert.Contains(t, out, "failed calculations:")
		assert.Contains(t, out, "R1 Bad")
		assert.Contains(t, out, "R2 Fine")
	})
}

func TestRefs_Listing(t *testing.T) {
	path := writeModel(t, `
model "Refs" {
  timeline {
    start  = "Jan 2026"
    months = 2
  }
}

key_period "Build" {
  start    = "Jan 2026"
  duration = "2 months"
}

index "CPI" {
  rate = 0.03
}

input_group "Unused" {
  mode = "constant"
}

input_group "Opex" {
  mode = "constant"

  input "Rent" {
    value = 10
  }
}

input_group "Choice" {
  mode = "lookup"

  sub_group "Panel" {
    selected = 1

    option "Mono" {
      value = 410
    }
  }
}

calc_group "Core" {
  calc "Rent2" {
    formula = "{Rent} * 2"
  }
}

module "Reserve" {
  template = "reserve_account"

  inputs = {
    target = "{Rent2}"
    window = "F1"
  }
}
`)

	out, _, err := execute(t, "refs", path)
	require.NoError(t, err)

	assert.Contains(t, out, "REF")
	assert.Contains(t, out, "T.DiM")
	assert.Contains(t, out, "F1")
	assert.Contains(t, out, "Build")
	assert.Contains(t, out, "I1")
	assert.Contains(t, out, "CPI")
	assert.Contains(t, out, "C1.1")
	assert.Contains(t, out, "Opex / Rent")
	assert.Contains(t, out, "L1.1")
	assert.Contains(t, out, "Choice / Panel")
	assert.Contains(t, out, "Rent2")
	assert.Contains(t, out, "M1.1")

	// The empty constant group consumed an authoring rank but no
	// positional one, so the alias table is populated.
	assert.Contains(t, out, "aliases:")
	assert.Contains(t, out, "C2")
}

func TestValidate_WarningsStillPass(t *testing.T) {
	path := writeModel(t, `
model "Warned" {
  timeline {
    start  = "Jan 2026"
    months = 2
  }
}

key_period "Later" {
  after    = "Ghost"
  duration = "1 month"
}

calc_group "Core" {
  calc "One" {
    formula = "1"
  }
}
`)

	out, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, `model "Warned"`)
}

func TestLogFlags(t *testing.T) {
	path := writeModel(t, demoModel)

	t.Run("invalid level", func(t *testing.T) {
		_, _, err := execute(t, "--log-level", "loud", "run", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log-level")
	})

	t.Run("invalid format", func(t *testing.T) {
		_, _, err := execute(t, "--log-format", "yaml", "run", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log-format")
	})

	t.Run("debug level surfaces library logs", func(t *testing.T) {
		_, errW, err := execute(t, "--log-level", "debug", "run", path)
		require.NoError(t, err)
		assert.Contains(t, errW, "Loading model sources.")
	})

	t.Run("environment sets the default level", func(t *testing.T) {
		t.Setenv("MODELGRID_LOG_LEVEL", "debug")
		_, errW, err := execute(t, "run", path)
		require.NoError(t, err)
		assert.Contains(t, errW, "Loading model sources.")
	})

	t.Run("json format", func(t *testing.T) {
		_, errW, err := execute(t, "--log-format", "json", "run", path)
		require.NoError(t, err)
		assert.Contains(t, errW, `"msg":"Model evaluated."`)
	})
}

func TestUsageErrors(t *testing.T) {
	_, _, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: modelgrid run <path>")
}

func TestFormatSeries(t *testing.T) {
	assert.Equal(t, "1 2.5 0", formatSeries(series.Series{1, 2.5, 0}))
	assert.Equal(t, "", formatSeries(nil))
}
