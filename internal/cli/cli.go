package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/acrebrook/modelgrid/internal/compiler"
	"github.com/acrebrook/modelgrid/internal/ctxlog"
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/engine"
	"github.com/acrebrook/modelgrid/internal/namespace"
	"github.com/acrebrook/modelgrid/internal/spec"
	"github.com/acrebrook/modelgrid/internal/templates"
)

// app carries the output streams every command writes to. Result data
// lands on out, logs and diagnostics on errW.
type app struct {
	out  io.Writer
	errW io.Writer
}

// New builds the modelgrid command tree.
func New(out, errW io.Writer) *cli.Command {
	a := &app{out: out, errW: errW}
	return &cli.Command{
		Name:      "modelgrid",
		Usage:     "A deterministic engine for monthly time-series financial models",
		Writer:    out,
		ErrWriter: errW,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: envDefault("MODELGRID_LOG_LEVEL", "info"),
				Usage: "Logging level: 'debug', 'info', 'warn', or 'error'.",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: envDefault("MODELGRID_LOG_FORMAT", "text"),
				Usage: "Log output format: 'text' or 'json'.",
			},
			&cli.StringFlag{
				Name:  "templates",
				Value: envDefault("MODELGRID_TEMPLATES", ""),
				Usage: "Path to extra template manifests (.hcl file or directory).",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Compile and evaluate a model, printing every calculation",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Write the result table as CSV instead of aligned text.",
					},
					&cli.IntFlag{
						Name:  "workers",
						Value: 1,
						Usage: "Evaluation concurrency. 0 uses every CPU; 1 runs sequentially.",
					},
					&cli.BoolFlag{
						Name:  "strict",
						Usage: "Refuse to evaluate when compilation reports errors.",
					},
				},
				Action: a.run,
			},
			{
				Name:      "validate",
				Usage:     "Compile a model and report its diagnostics",
				ArgsUsage: "<path>",
				Action:    a.validate,
			},
			{
				Name:      "refs",
				Usage:     "List every reference the model defines, with types and aliases",
				ArgsUsage: "<path>",
				Action:    a.refs,
			},
			{
				Name:      "calc",
				Usage:     "Evaluate a model and explore it with an interactive formula prompt",
				ArgsUsage: "<path>",
				Action:    a.calc,
			},
		},
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// logContext validates the logging flags and returns a context carrying
// the configured logger.
func (a *app) logContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := strings.ToLower(cmd.String("log-level"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return ctx, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", level)
	}
	format := strings.ToLower(cmd.String("log-format"))
	if format != "text" && format != "json" {
		return ctx, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", format)
	}
	return ctxlog.WithLogger(ctx, newLogger(level, format, a.errW)), nil
}

// load reads the model sources named by the command's path argument and
// assembles the template registry, manifests included.
func (a *app) load(ctx context.Context, cmd *cli.Command) (*spec.Model, diag.Diagnostics, *templates.Registry, error) {
	path := cmd.Args().First()
	if path == "" {
		return nil, nil, nil, fmt.Errorf("usage: modelgrid %s <path>", cmd.Name)
	}

	model, diags, err := spec.LoadModel(ctx, path)
	if err != nil {
		return nil, nil, nil, err
	}

	reg := templates.Builtins()
	if p := cmd.String("templates"); p != "" {
		if err := reg.LoadManifests(ctx, p); err != nil {
			return nil, nil, nil, err
		}
	}
	return model, diags, reg, nil
}

func (a *app) run(ctx context.Context, cmd *cli.Command) error {
	ctx, err := a.logContext(ctx, cmd)
	if err != nil {
		return err
	}
	model, diags, reg, err := a.load(ctx, cmd)
	if err != nil {
		return err
	}

	workers := int(cmd.Int("workers"))
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	res, runErr := engine.Run(ctx, model, reg, engine.Options{
		Workers: workers,
		Strict:  cmd.Bool("strict"),
	})
	if res != nil {
		diags = diags.Extend(res.Diags)
	}
	writeDiags(a.errW, diags)
	if runErr != nil {
		return runErr
	}

	ctxlog.FromContext(ctx).Info("Model evaluated.",
		"model", res.Name,
		"calculations", len(res.Calcs),
		"workers", workers,
	)

	if cmd.Bool("csv") {
		return writeCSV(a.out, res)
	}
	return writeTable(a.out, res)
}

func (a *app) validate(ctx context.Context, cmd *cli.Command) error {
	ctx, err := a.logContext(ctx, cmd)
	if err != nil {
		return err
	}
	model, diags, reg, err := a.load(ctx, cmd)
	if err != nil {
		return err
	}

	rec, compileDiags, err := compiler.Compile(ctx, model, reg)
	if err != nil {
		return err
	}
	diags = diags.Extend(compileDiags)
	writeDiags(a.out, diags)

	if rec == nil || diags.HasErrors() {
		return errors.New("validation failed")
	}
	fmt.Fprintf(a.out, "model %q: %d calculation(s), %d period(s), %d check(s)\n",
		rec.Name, len(rec.Calcs), rec.Grid.Len(), len(rec.Checks))
	return nil
}

func (a *app) refs(ctx context.Context, cmd *cli.Command) error {
	ctx, err := a.logContext(ctx, cmd)
	if err != nil {
		return err
	}
	model, diags, reg, err := a.load(ctx, cmd)
	if err != nil {
		return err
	}

	rec, compileDiags, err := compiler.Compile(ctx, model, reg)
	if err != nil {
		return err
	}
	diags = diags.Extend(compileDiags)
	if rec == nil {
		writeDiags(a.errW, diags)
		return errors.New("model did not compile; see diagnostics")
	}

	ns, nsDiags, err := namespace.Build(ctx, rec)
	if err != nil {
		return err
	}
	writeDiags(a.errW, diags.Extend(nsDiags))
	return writeRefs(a.out, rec, ns)
}

func (a *app) calc(ctx context.Context, cmd *cli.Command) error {
	ctx, err := a.logContext(ctx, cmd)
	if err != nil {
		return err
	}
	model, diags, reg, err := a.load(ctx, cmd)
	if err != nil {
		return err
	}

	rec, compileDiags, err := compiler.Compile(ctx, model, reg)
	if err != nil {
		return err
	}
	diags = diags.Extend(compileDiags)
	if rec == nil {
		writeDiags(a.errW, diags)
		return errors.New("model did not compile; see diagnostics")
	}

	res, err := engine.Evaluate(ctx, rec, engine.Options{})
	if err != nil {
		return err
	}
	writeDiags(a.errW, diags.Extend(res.Diags))
	return a.repl(rec, res)
}
