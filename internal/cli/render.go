package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/acrebrook/modelgrid/internal/analysis"
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/engine"
	"github.com/acrebrook/modelgrid/internal/namespace"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
	"github.com/acrebrook/modelgrid/internal/series"
)

func writeDiags(w io.Writer, diags diag.Diagnostics) {
	for _, d := range diags {
		fmt.Fprintln(w, d.Error())
	}
}

// writeTable prints the evaluated model as an aligned period-by-
// calculation table, followed by failures and check outcomes.
func writeTable(w io.Writer, res *engine.Result) error {
	grid := res.Namespace.Grid()
	fmt.Fprintf(w, "%s: %d period(s), %s .. %s\n\n",
		res.Name, grid.Len(), grid.MonthAt(0), grid.MonthAt(grid.Len()-1))

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprint(tw, "period")
	for _, c := range res.Calcs {
		fmt.Fprintf(tw, "\t%s %s", refs.Calc(c.ID), c.Name)
	}
	fmt.Fprintln(tw)
	for t := 0; t < grid.Len(); t++ {
		fmt.Fprint(tw, grid.MonthAt(t))
		for _, c := range res.Calcs {
			fmt.Fprintf(tw, "\t%s", formatValue(c.Values[t]))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	writeFailures(w, res)
	writeChecks(w, res.Checks)
	return nil
}

// writeCSV prints the same table machine-readably, one row per period.
func writeCSV(w io.Writer, res *engine.Result) error {
	grid := res.Namespace.Grid()
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(res.Calcs)+1)
	header = append(header, "period")
	for _, c := range res.Calcs {
		header = append(header, fmt.Sprintf("%s %s", refs.Calc(c.ID), c.Name))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for t := 0; t < grid.Len(); t++ {
		row[0] = grid.MonthAt(t).String()
		for i, c := range res.Calcs {
			row[i+1] = formatValue(c.Values[t])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFailures(w io.Writer, res *engine.Result) {
	var failed []*engine.CalcResult
	for _, c := range res.Calcs {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	if len(failed) == 0 {
		return
	}
	fmt.Fprintln(w, "\nfailed calculations:")
	for _, c := range failed {
		fmt.Fprintf(w, "  %s %s: %s\n", refs.Calc(c.ID), c.Name, c.Err)
	}
}

func writeChecks(w io.Writer, checks []*analysis.Result) {
	if len(checks) == 0 {
		return
	}
	fmt.Fprintln(w, "\nchecks:")
	for _, c := range checks {
		status := "pass"
		switch {
		case c.Undetermined:
			status = "undetermined"
		case !c.Passed:
			status = "FAIL"
		}
		label := string(c.Kind)
		if c.Name != "" {
			label = fmt.Sprintf("%s %q", c.Kind, c.Name)
		}
		fmt.Fprintf(w, "  %-12s %s on %s: %s\n", status, label, c.Target, c.Detail)
	}
}

// writeRefs lists every reference the model defines: namespace entries,
// calculations, module outputs, and the alias table.
func writeRefs(w io.Writer, rec *recipe.Recipe, ns *namespace.Namespace) error {
	names := refNames(rec)

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "REF\tTYPE\tNAME")
	for _, b := range ns.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Ref, b.Entry.Type, names[b.Ref.String()])
	}
	for _, c := range rec.Calcs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", refs.Calc(c.ID), c.Type, c.Name)
	}
	for _, key := range sortedModuleRefs(rec) {
		id := rec.ModuleRefs[key]
		if c, ok := rec.CalcByID(id); ok {
			fmt.Fprintf(tw, "%s\t%s\t%s (%s)\n", key, c.Type, c.Name, refs.Calc(id))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rec.Aliases) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\naliases:")
	tw = tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, al := range rec.Aliases.Sorted() {
		fmt.Fprintf(tw, "  %s\t%s\n", al.Authored, al.Positional)
	}
	return tw.Flush()
}

// refNames maps positional reference text to authoring names.
func refNames(rec *recipe.Recipe) map[string]string {
	names := make(map[string]string)
	for _, kp := range rec.KeyPeriods {
		names[refs.Flag(kp.ID, refs.SuffixNone).String()] = kp.Name
		names[refs.Flag(kp.ID, refs.SuffixStart).String()] = kp.Name + " start"
		names[refs.Flag(kp.ID, refs.SuffixEnd).String()] = kp.Name + " end"
	}
	for _, idx := range rec.Indices {
		names[refs.Index(idx.ID).String()] = idx.Name
	}
	for _, gr := range namespace.ScanRanks(rec) {
		if !gr.Active {
			continue
		}
		if gr.Kind == refs.KindLookup {
			for s, sub := range gr.Group.SubGroups {
				names[refs.Input(refs.KindLookup, gr.Pos, s+1).String()] = gr.Group.Name + " / " + sub.Name
				for o, opt := range sub.Options {
					names[refs.Option(gr.Pos, s+1, o+1).String()] = gr.Group.Name + " / " + sub.Name + " / " + opt.Name
				}
			}
			continue
		}
		for i, in := range gr.Group.Inputs {
			names[refs.Input(gr.Kind, gr.Pos, i+1).String()] = gr.Group.Name + " / " + in.Name
		}
	}
	return names
}

func sortedModuleRefs(rec *recipe.Recipe) []string {
	keys := make([]string, 0, len(rec.ModuleRefs))
	for key := range rec.ModuleRefs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, erri := refs.Parse(keys[i])
		rj, errj := refs.Parse(keys[j])
		if erri == nil && errj == nil {
			return refs.Compare(ri, rj) < 0
		}
		return keys[i] < keys[j]
	})
	return keys
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatSeries(values series.Series) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(formatValue(v))
	}
	return b.String()
}
