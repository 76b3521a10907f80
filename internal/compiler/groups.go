package compiler

import (
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/spec"
	"github.com/acrebrook/modelgrid/internal/timegrid"
)

// translateGroups carries every declared group into the recipe, active
// or not, because authoring ranks count inactive groups too. Sparse
// value months parse here; an entry outside the timeline is dropped with
// a warning rather than silently wrapping.
func translateGroups(model *spec.Model, grid *timegrid.Grid, diags diag.Diagnostics) ([]*recipe.Group, diag.Diagnostics) {
	var out []*recipe.Group
	for _, g := range model.Groups {
		subject := "input group " + g.Name

		mode, err := recipe.ParseGroupMode(g.Mode)
		if err != nil {
			diags = diags.Errorf(subject, "%v", err)
			continue
		}

		rg := &recipe.Group{Name: g.Name, Mode: mode}

		if mode == recipe.ModeLookup && len(g.Inputs) > 0 {
			diags = diags.Warnf(subject, "lookup groups address options through sub_groups; %d plain input(s) ignored", len(g.Inputs))
		}
		if mode != recipe.ModeLookup && len(g.SubGroups) > 0 {
			diags = diags.Warnf(subject, "sub_groups are only meaningful in lookup groups; %d ignored", len(g.SubGroups))
		}

		switch mode {
		case recipe.ModeLookup:
			for _, sg := range g.SubGroups {
				selected := sg.Selected
				if selected == 0 {
					selected = 1
				}
				rsg := &recipe.SubGroup{Name: sg.Name, Selected: selected}
				for _, o := range sg.Options {
					rsg.Options = append(rsg.Options, &recipe.Option{Name: o.Name, Value: o.Value})
				}
				rg.SubGroups = append(rg.SubGroups, rsg)
			}
		default:
			for _, in := range g.Inputs {
				ri := &recipe.Input{
					Name:      in.Name,
					Value:     in.Value,
					KeyPeriod: in.KeyPeriod,
					Field:     in.Field,
				}
				ri.Values, diags = parseSparseValues(in, grid, subject, diags)
				rg.Inputs = append(rg.Inputs, ri)
			}
		}

		out = append(out, rg)
	}
	return out, diags
}

func parseSparseValues(in *spec.Input, grid *timegrid.Grid, subject string, diags diag.Diagnostics) (map[int]float64, diag.Diagnostics) {
	if len(in.Values) == 0 {
		return nil, diags
	}
	values := make(map[int]float64, len(in.Values))
	for monthText, v := range in.Values {
		m, err := timegrid.ParseMonth(monthText)
		if err != nil {
			diags = diags.Errorf(subject, "input %q: %v", in.Name, err)
			continue
		}
		t, ok := grid.IndexOf(m)
		if !ok {
			diags = diags.Warnf(subject, "input %q: %s is outside the timeline; the entry is dropped", in.Name, monthText)
			continue
		}
		values[t] = v
	}
	return values, diags
}
