package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Validate(t *testing.T) {
	dir := t.TempDir()
	model := `
model "Tiny" {
  timeline {
    start  = "Jan 2026"
    months = 2
  }
}

input_group "Inputs" {
  mode = "constant"

  input "Base" {
    value = 42
  }
}

calc_group "Core" {
  calc "Double" {
    formula = "{Base} * 2"
  }
}
`
	path := filepath.Join(dir, "model.hcl")
	require.NoError(t, os.WriteFile(path, []byte(model), 0o644))

	out := &bytes.Buffer{}
	errW := &bytes.Buffer{}
	err := run(context.Background(), out, errW, []string{"modelgrid", "validate", path})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `model "Tiny"`)
	assert.Contains(t, out.String(), "1 calculation(s)")
}

func TestRun_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	model := `
model "Broken" {
  timeline {
    start  = "Jan 2026"
    months = 2
  }
}

calc_group "Core" {
  calc "Bad" {
    formula = "V9.9 + 1"
  }
}
`
	path := filepath.Join(dir, "model.hcl")
	require.NoError(t, os.WriteFile(path, []byte(model), 0o644))

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"modelgrid", "validate", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, out.String(), "Unknown reference(s)")
}
