package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/acrebrook/modelgrid/internal/engine"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
)

const historyFile = ".modelgrid_history"

// repl reads formulas line by line and evaluates each against the
// finished run. Ctrl+C cancels the current line, Ctrl+D exits.
func (a *app) repl(rec *recipe.Recipe, res *engine.Result) error {
	grid := res.Namespace.Grid()
	fmt.Fprintf(a.out, "%s: %d period(s), %s .. %s, %d calculation(s)\n",
		res.Name, grid.Len(), grid.MonthAt(0), grid.MonthAt(grid.Len()-1), len(res.Calcs))
	fmt.Fprintln(a.out, "Type a formula; :refs lists references, :quit exits.")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt("mg> ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(a.out)
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return err
		}

		src := strings.TrimSpace(line)
		if src == "" {
			continue
		}
		if strings.HasPrefix(src, ":") {
			if a.replCommand(src, rec, res) {
				return nil
			}
			continue
		}

		values, err := res.Query(src)
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
			continue
		}
		fmt.Fprintln(a.out, formatSeries(values))
		ln.AppendHistory(src)
	}
}

// replCommand handles one colon command, reporting whether the REPL
// should exit.
func (a *app) replCommand(src string, rec *recipe.Recipe, res *engine.Result) bool {
	switch src {
	case ":quit", ":q":
		return true
	case ":refs":
		if err := writeRefs(a.out, rec, res.Namespace); err != nil {
			fmt.Fprintln(a.out, "error:", err)
		}
	case ":failed":
		a.replFailed(res)
	case ":help":
		fmt.Fprintln(a.out, "commands: :refs, :failed, :quit")
	default:
		fmt.Fprintln(a.out, "unknown command; commands: :refs, :failed, :quit")
	}
	return false
}

func (a *app) replFailed(res *engine.Result) {
	any := false
	for _, c := range res.Calcs {
		if c.Failed() {
			fmt.Fprintf(a.out, "%s %s: %s\n", refs.Calc(c.ID), c.Name, c.Err)
			any = true
		}
	}
	if !any {
		fmt.Fprintln(a.out, "every calculation evaluated")
	}
}
