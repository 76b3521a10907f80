package compiler

import (
	"fmt"
	"strings"

	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/formula"
	"github.com/acrebrook/modelgrid/internal/namespace"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
)

// definedRefs enumerates every reference the compiled recipe defines:
// what the namespace will resolve, plus calculation and module-output
// addresses.
func definedRefs(rec *recipe.Recipe) map[string]bool {
	defined := make(map[string]bool)

	for _, key := range namespace.TimeConstantKeys() {
		defined[refs.Time(key).String()] = true
	}
	for _, kp := range rec.KeyPeriods {
		defined[refs.Flag(kp.ID, refs.SuffixNone).String()] = true
		defined[refs.Flag(kp.ID, refs.SuffixStart).String()] = true
		defined[refs.Flag(kp.ID, refs.SuffixEnd).String()] = true
	}
	for _, idx := range rec.Indices {
		defined[refs.Index(idx.ID).String()] = true
	}
	for _, gr := range namespace.ScanRanks(rec) {
		if !gr.Active {
			continue
		}
		if gr.Kind == refs.KindLookup {
			for s, sg := range gr.Group.SubGroups {
				defined[refs.Input(refs.KindLookup, gr.Pos, s+1).String()] = true
				for o := range sg.Options {
					defined[refs.Option(gr.Pos, s+1, o+1).String()] = true
				}
			}
			continue
		}
		for i := range gr.Group.Inputs {
			defined[refs.Input(gr.Kind, gr.Pos, i+1).String()] = true
		}
	}
	for _, c := range rec.Calcs {
		defined[refs.Calc(c.ID).String()] = true
	}
	for m := range rec.ModuleRefs {
		defined[m] = true
	}
	return defined
}

// validateRecipe is the final compilation pass: every formula must parse
// and every reference it cites must exist. Problems are collected
// exhaustively; one diagnostic lists all unknown references of a
// calculation, and a broken formula never hides the next one.
func validateRecipe(rec *recipe.Recipe) diag.Diagnostics {
	var diags diag.Diagnostics
	defined := definedRefs(rec)

	for _, c := range rec.Calcs {
		subject := fmt.Sprintf("calculation R%d %q", c.ID, c.Name)

		var unknown []string
		for _, r := range refs.ExtractUnique(c.Formula) {
			if !defined[r.String()] {
				unknown = append(unknown, r.String())
			}
		}
		if len(unknown) > 0 {
			diags = diags.Append(&diag.Diagnostic{
				Severity: diag.SeverityError,
				Summary:  "Unknown reference(s)",
				Detail:   strings.Join(unknown, ", "),
				Subject:  subject,
			})
		}

		if _, err := formula.Compile(c.Formula, formula.Limits{}); err != nil {
			diags = diags.Errorf(subject, "formula does not parse: %v", err)
		}
	}

	for _, ch := range rec.Checks {
		subject := "check " + string(ch.Kind)
		if ch.Name != "" {
			subject = fmt.Sprintf("check %q", ch.Name)
		}
		diags = validateCheckRef(subject, "calc", ch.Target, defined, diags)
		if ch.Active != "" {
			diags = validateCheckRef(subject, "active", ch.Active, defined, diags)
		}
	}

	return diags
}

func validateCheckRef(subject, field, text string, defined map[string]bool, diags diag.Diagnostics) diag.Diagnostics {
	r, err := refs.Parse(strings.TrimSpace(text))
	if err != nil {
		return diags.Errorf(subject, "%s %q is not a reference: %v", field, text, err)
	}
	if !defined[r.String()] {
		return diags.Errorf(subject, "%s %s does not resolve to anything the model defines", field, r.String())
	}
	return diags
}
