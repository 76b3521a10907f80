// Package compiler translates the authoring model into a compiled
// recipe: calculation IDs assigned, names substituted for addressed
// references, modules expanded, and every formula reference validated.
//
// Compilation never stops at the first problem. Model-level issues
// accumulate as diagnostics and the recipe is returned regardless, so an
// author sees the complete picture of a half-finished model; only a
// missing or unparsable timeline prevents a recipe from existing at all.
package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/acrebrook/modelgrid/internal/ctxlog"
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/expand"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/spec"
	"github.com/acrebrook/modelgrid/internal/templates"
	"github.com/acrebrook/modelgrid/internal/timegrid"
)

// Compile builds a recipe from the authoring model. The error return is
// reserved for contract violations; model problems come back as
// diagnostics next to the recipe. A nil recipe with diagnostics means
// the timeline itself was unusable.
func Compile(ctx context.Context, model *spec.Model, reg *templates.Registry) (*recipe.Recipe, diag.Diagnostics, error) {
	if model == nil {
		return nil, nil, errors.New("compiler: nil model")
	}
	if reg == nil {
		return nil, nil, errors.New("compiler: nil template registry")
	}
	logger := ctxlog.FromContext(ctx)
	var diags diag.Diagnostics

	grid, diags := buildGrid(model, diags)
	if grid == nil {
		return nil, diags, nil
	}

	rec := &recipe.Recipe{
		Name:       model.Name,
		Grid:       grid,
		ModuleRefs: make(map[string]int),
	}

	rec.Groups, diags = translateGroups(model, grid, diags)
	rec.KeyPeriods, diags = resolveKeyPeriods(model, grid, diags)
	rec.Indices, diags = translateIndices(model, grid, diags)

	alloc := recipe.NewIDAllocator()
	rec.Calcs, diags = assignCalcs(model, alloc, diags)

	syms, diags := buildSymbols(rec, diags)
	for _, c := range rec.Calcs {
		c.Formula = syms.substitute(c.Formula, fmt.Sprintf("calculation %q", c.Name), &diags)
	}

	rec.Modules, diags = translateModules(model, syms, diags)
	diags = diags.Extend(expand.Modules(ctx, rec, reg, alloc))

	rec.Checks, diags = translateChecks(model, syms, diags)

	rec.Aliases = buildAliases(rec)

	diags = diags.Extend(validateRecipe(rec))

	logger.DebugContext(ctx, "Model compiled.",
		"name", rec.Name,
		"periods", grid.Len(),
		"groups", len(rec.Groups),
		"key_periods", len(rec.KeyPeriods),
		"calcs", len(rec.Calcs),
		"modules", len(rec.Modules),
		"diagnostics", len(diags),
	)
	return rec, diags, nil
}

func buildGrid(model *spec.Model, diags diag.Diagnostics) (*timegrid.Grid, diag.Diagnostics) {
	if model.Timeline == nil {
		return nil, diags.Errorf("timeline", "the model declares no timeline")
	}
	start, err := timegrid.ParseMonth(model.Timeline.Start)
	if err != nil {
		return nil, diags.Errorf("timeline", "start: %v", err)
	}
	grid, err := timegrid.New(start, model.Timeline.Months)
	if err != nil {
		return nil, diags.Errorf("timeline", "months: %v", err)
	}
	return grid, diags
}

// assignCalcs fixes every authored calculation's ID before any formula
// is substituted, so forward name references resolve. Explicit IDs are
// claimed first and survive reordering; the rest fill the lowest free
// IDs in declaration order.
func assignCalcs(model *spec.Model, alloc *recipe.IDAllocator, diags diag.Diagnostics) ([]*recipe.Calc, diag.Diagnostics) {
	claimed := make(map[int]*spec.Calc)
	for _, g := range model.CalcGroups {
		for _, c := range g.Calcs {
			if c.ID <= 0 {
				continue
			}
			if !alloc.Claim(c.ID) {
				prev := ""
				if p := claimed[c.ID]; p != nil {
					prev = p.Name
				}
				diags = diags.Errorf(fmt.Sprintf("calculation %q", c.Name),
					"id %d is already taken by calculation %q", c.ID, prev)
				continue
			}
			claimed[c.ID] = c
		}
	}

	var out []*recipe.Calc
	for _, g := range model.CalcGroups {
		for _, c := range g.Calcs {
			id := c.ID
			if id <= 0 || claimed[id] != c {
				// Either no explicit ID, or a duplicate already reported;
				// take a fresh ID so the calculation still compiles.
				id = alloc.Next()
			}
			typ, err := recipe.ParseValueType(c.Type)
			if err != nil {
				diags = diags.Errorf(fmt.Sprintf("calculation %q", c.Name), "%v", err)
				typ = recipe.Flow
			}
			out = append(out, &recipe.Calc{
				ID:      id,
				Name:    c.Name,
				Formula: c.Formula,
				Type:    typ,
			})
		}
	}
	return out, diags
}

func translateModules(model *spec.Model, syms *symbols, diags diag.Diagnostics) ([]*recipe.ModuleInstance, diag.Diagnostics) {
	var out []*recipe.ModuleInstance
	for i, m := range model.Modules {
		subject := "module " + m.Name
		inst := &recipe.ModuleInstance{
			Name:     m.Name,
			Template: m.Template,
			Index:    i + 1,
			Inputs:   make(map[string]string, len(m.Inputs)),
		}
		for key, binding := range m.Inputs {
			inst.Inputs[key] = syms.substitute(binding, subject, &diags)
		}
		for _, ex := range m.Extras {
			typ, err := recipe.ParseValueType(ex.Type)
			if err != nil {
				diags = diags.Errorf(subject, "extra calculation %q: %v", ex.Name, err)
				typ = recipe.Flow
			}
			inst.Extras = append(inst.Extras, &recipe.ExtraCalc{
				Key:     ex.Key,
				Name:    ex.Name,
				Formula: syms.substitute(ex.Formula, subject, &diags),
				Type:    typ,
			})
		}
		out = append(out, inst)
	}
	return out, diags
}

func translateChecks(model *spec.Model, syms *symbols, diags diag.Diagnostics) ([]*recipe.Check, diag.Diagnostics) {
	var out []*recipe.Check
	for _, c := range model.Checks {
		subject := "check " + c.Kind
		if c.Name != "" {
			subject = fmt.Sprintf("check %q", c.Name)
		}
		kind, err := recipe.ParseCheckKind(c.Kind)
		if err != nil {
			diags = diags.Errorf(subject, "%v", err)
			continue
		}
		check := &recipe.Check{
			Kind:      kind,
			Name:      c.Name,
			Target:    syms.substitute(c.Calc, subject, &diags),
			Tolerance: c.Tolerance,
			Threshold: c.Threshold,
		}
		if c.Active != "" {
			check.Active = syms.substitute(c.Active, subject, &diags)
		}
		out = append(out, check)
	}
	return out, diags
}
