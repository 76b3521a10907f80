// Package modeltest runs whole models for integration tests: sources
// are written to a fresh directory and pushed through the full
// load-compile-evaluate pipeline in one call, with every diagnostic the
// pipeline produced collected for the caller to judge.
package modeltest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/engine"
	"github.com/acrebrook/modelgrid/internal/series"
	"github.com/acrebrook/modelgrid/internal/spec"
	"github.com/acrebrook/modelgrid/internal/templates"
	"github.com/acrebrook/modelgrid/internal/testutil"
)

// Outcome holds everything one whole-model run produced.
type Outcome struct {
	Model  *spec.Model
	Result *engine.Result
	Diags  diag.Diagnostics
	Err    error
	Logs   *testutil.SafeBuffer
}

// Run writes the given sources into a temporary directory and takes
// them through load, compile, and evaluation. A nil registry means the
// built-in templates. Source paths may contain subdirectories; the
// loader walks them. Only a load that cannot even start stops the test;
// evaluation problems land in Err and Diags.
func Run(t *testing.T, files map[string]string, reg *templates.Registry, opts engine.Options) *Outcome {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	ctx, logs := testutil.ContextWithLog(t)
	model, loadDiags, err := spec.LoadModel(ctx, dir)
	require.NoError(t, err)

	if reg == nil {
		reg = templates.Builtins()
	}
	res, runErr := engine.Run(ctx, model, reg, opts)

	out := &Outcome{Model: model, Result: res, Err: runErr, Logs: logs}
	out.Diags = append(out.Diags, loadDiags...)
	if res != nil {
		out.Diags = append(out.Diags, res.Diags...)
	}
	return out
}

// Series resolves one evaluated reference or formula, failing the test
// when the run cannot answer it. Failed calculations resolve as the
// zero arrays they published.
func (o *Outcome) Series(t *testing.T, src string) series.Series {
	t.Helper()
	require.NotNil(t, o.Result, "run produced no result")
	values, err := o.Result.Query(src)
	require.NoError(t, err, "query %s", src)
	return values
}

// Calc returns one calculation's result by positional ID.
func (o *Outcome) Calc(t *testing.T, id int) *engine.CalcResult {
	t.Helper()
	require.NotNil(t, o.Result, "run produced no result")
	c, ok := o.Result.CalcByID(id)
	require.True(t, ok, "no calculation R%d", id)
	return c
}

// CalcByName returns one calculation's result by its authored name.
func (o *Outcome) CalcByName(t *testing.T, name string) *engine.CalcResult {
	t.Helper()
	require.NotNil(t, o.Result, "run produced no result")
	for _, c := range o.Result.Calcs {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no calculation named %q", name)
	return nil
}
