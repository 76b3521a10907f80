package spec

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/acrebrook/modelgrid/internal/ctxlog"
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/fsutil"
)

// HCL schema for model sources. Blocks may spread across any number of
// files; the loader merges them in path order.
type modelFile struct {
	Model      *modelBlock        `hcl:"model,block"`
	KeyPeriods []*keyPeriodBlock  `hcl:"key_period,block"`
	Indices    []*indexBlock      `hcl:"index,block"`
	Groups     []*inputGroupBlock `hcl:"input_group,block"`
	CalcGroups []*calcGroupBlock  `hcl:"calc_group,block"`
	Modules    []*moduleBlock     `hcl:"module,block"`
	Checks     []*checkBlock      `hcl:"check,block"`
	Body       hcl.Body           `hcl:",remain"`
}

type modelBlock struct {
	Name     string         `hcl:"name,label"`
	Timeline *timelineBlock `hcl:"timeline,block"`
}

type timelineBlock struct {
	Start  string `hcl:"start"`
	Months int    `hcl:"months"`
}

type keyPeriodBlock struct {
	Name     string `hcl:"name,label"`
	Start    string `hcl:"start,optional"`
	After    string `hcl:"after,optional"`
	With     string `hcl:"with,optional"`
	Offset   int    `hcl:"offset,optional"`
	Duration string `hcl:"duration,optional"`
}

type indexBlock struct {
	Name string  `hcl:"name,label"`
	Rate float64 `hcl:"rate"`
	Base string  `hcl:"base,optional"`
}

type inputGroupBlock struct {
	Name      string           `hcl:"name,label"`
	Mode      string           `hcl:"mode"`
	Inputs    []*inputValue    `hcl:"input,block"`
	SubGroups []*subGroupBlock `hcl:"sub_group,block"`
}

// inputValue keeps values as an unevaluated expression so sparse month
// maps can be decoded with string keys intact.
type inputValue struct {
	Name      string         `hcl:"name,label"`
	Value     float64        `hcl:"value,optional"`
	Values    hcl.Expression `hcl:"values,optional"`
	KeyPeriod string         `hcl:"key_period,optional"`
	Field     string         `hcl:"field,optional"`
}

type subGroupBlock struct {
	Name     string         `hcl:"name,label"`
	Selected int            `hcl:"selected,optional"`
	Options  []*optionBlock `hcl:"option,block"`
}

type optionBlock struct {
	Name  string  `hcl:"name,label"`
	Value float64 `hcl:"value"`
}

type calcGroupBlock struct {
	Name  string       `hcl:"name,label"`
	Calcs []*calcBlock `hcl:"calc,block"`
}

type calcBlock struct {
	Name    string `hcl:"name,label"`
	ID      int    `hcl:"id,optional"`
	Formula string `hcl:"formula"`
	Type    string `hcl:"type,optional"`
}

type moduleBlock struct {
	Name     string         `hcl:"name,label"`
	Template string         `hcl:"template"`
	Inputs   hcl.Expression `hcl:"inputs,optional"`
	Extras   []*extraBlock  `hcl:"calc,block"`
}

type extraBlock struct {
	Key     string `hcl:"key,label"`
	Name    string `hcl:"name,optional"`
	Formula string `hcl:"formula"`
	Type    string `hcl:"type,optional"`
}

type checkBlock struct {
	Kind      string  `hcl:"kind,label"`
	Name      string  `hcl:"name,optional"`
	Calc      string  `hcl:"calc"`
	Tolerance float64 `hcl:"tolerance,optional"`
	Threshold float64 `hcl:"threshold,optional"`
	Active    string  `hcl:"active,optional"`
}

// LoadModel reads model source from an .hcl file or a directory of them
// and merges the decoded blocks into one Model. Authoring problems are
// reported as diagnostics rather than aborting the load; the returned
// error covers unusable paths only.
func LoadModel(ctx context.Context, path string) (*Model, diag.Diagnostics, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading model sources.", "path", path)

	filePaths, err := fsutil.ResolveSources(path, ".hcl")
	if err != nil {
		return nil, nil, fmt.Errorf("resolve model sources: %w", err)
	}

	l := &loader{model: &Model{}}
	parser := hclparse.NewParser()
	for _, filePath := range filePaths {
		hclFile, parseDiags := parser.ParseHCLFile(filePath)
		l.fromHCL(parseDiags)
		if parseDiags.HasErrors() {
			logger.Warn("Skipping unparsable model file.", "file", filePath)
			continue
		}

		var file modelFile
		decodeDiags := gohcl.DecodeBody(hclFile.Body, nil, &file)
		l.fromHCL(decodeDiags)
		if decodeDiags.HasErrors() {
			logger.Warn("Skipping undecodable model file.", "file", filePath)
			continue
		}

		l.mergeFile(&file)
		logger.Debug("Decoded model file.", "file", filePath)
	}

	logger.Debug("Loaded model sources.",
		"name", l.model.Name,
		"groups", len(l.model.Groups),
		"calc_groups", len(l.model.CalcGroups),
		"modules", len(l.model.Modules),
		"diagnostics", len(l.diags),
	)
	return l.model, l.diags, nil
}

// loader accumulates blocks from successive files into one model.
type loader struct {
	model     *Model
	diags     diag.Diagnostics
	seenModel bool
}

// fromHCL carries HCL parser and decoder diagnostics into the loader's
// set, keeping source positions as subjects.
func (l *loader) fromHCL(src hcl.Diagnostics) {
	for _, hd := range src {
		sev := diag.SeverityWarning
		if hd.Severity == hcl.DiagError {
			sev = diag.SeverityError
		}
		subject := ""
		if hd.Subject != nil {
			subject = hd.Subject.String()
		}
		l.diags = l.diags.Append(&diag.Diagnostic{
			Severity: sev,
			Summary:  hd.Summary,
			Detail:   hd.Detail,
			Subject:  subject,
		})
	}
}

func (l *loader) mergeFile(file *modelFile) {
	if file.Model != nil {
		if l.seenModel {
			l.diags = l.diags.Errorf(fmt.Sprintf("model %q", file.Model.Name),
				"model block declared more than once")
		} else {
			l.seenModel = true
			l.model.Name = file.Model.Name
			if file.Model.Timeline != nil {
				l.model.Timeline = &Timeline{
					Start:  file.Model.Timeline.Start,
					Months: file.Model.Timeline.Months,
				}
			}
		}
	}

	for _, kp := range file.KeyPeriods {
		l.model.KeyPeriods = append(l.model.KeyPeriods, &KeyPeriod{
			Name:     kp.Name,
			Start:    kp.Start,
			After:    kp.After,
			With:     kp.With,
			Offset:   kp.Offset,
			Duration: kp.Duration,
		})
	}
	for _, idx := range file.Indices {
		l.model.Indices = append(l.model.Indices, &Index{
			Name: idx.Name,
			Rate: idx.Rate,
			Base: idx.Base,
		})
	}
	for _, g := range file.Groups {
		l.model.Groups = append(l.model.Groups, l.translateGroup(g))
	}
	for _, cg := range file.CalcGroups {
		group := &CalcGroup{Name: cg.Name}
		for _, c := range cg.Calcs {
			group.Calcs = append(group.Calcs, &Calc{
				ID:      c.ID,
				Name:    c.Name,
				Formula: c.Formula,
				Type:    c.Type,
			})
		}
		l.model.CalcGroups = append(l.model.CalcGroups, group)
	}
	for _, mod := range file.Modules {
		l.model.Modules = append(l.model.Modules, l.translateModule(mod))
	}
	for _, chk := range file.Checks {
		l.model.Checks = append(l.model.Checks, &Check{
			Kind:      chk.Kind,
			Name:      chk.Name,
			Calc:      chk.Calc,
			Tolerance: chk.Tolerance,
			Threshold: chk.Threshold,
			Active:    chk.Active,
		})
	}
}

func (l *loader) translateGroup(block *inputGroupBlock) *InputGroup {
	group := &InputGroup{Name: block.Name, Mode: block.Mode}
	for _, in := range block.Inputs {
		values, valueDiags := decodeValueMap(in.Values)
		l.fromHCL(valueDiags)
		group.Inputs = append(group.Inputs, &Input{
			Name:      in.Name,
			Value:     in.Value,
			Values:    values,
			KeyPeriod: in.KeyPeriod,
			Field:     in.Field,
		})
	}
	for _, sg := range block.SubGroups {
		sub := &SubGroup{Name: sg.Name, Selected: sg.Selected}
		for _, opt := range sg.Options {
			sub.Options = append(sub.Options, &Option{Name: opt.Name, Value: opt.Value})
		}
		group.SubGroups = append(group.SubGroups, sub)
	}
	return group
}

func (l *loader) translateModule(block *moduleBlock) *Module {
	inputs, inputDiags := decodeStringMap(block.Inputs)
	l.fromHCL(inputDiags)
	mod := &Module{Name: block.Name, Template: block.Template, Inputs: inputs}
	for _, extra := range block.Extras {
		mod.Extras = append(mod.Extras, &ExtraCalc{
			Key:     extra.Key,
			Name:    extra.Name,
			Formula: extra.Formula,
			Type:    extra.Type,
		})
	}
	return mod
}

// decodeValueMap evaluates a values expression into month-keyed amounts.
// A nil expression means the attribute was absent.
func decodeValueMap(expr hcl.Expression) (map[string]float64, hcl.Diagnostics) {
	val, ok, diags := objectValue(expr, "values")
	if !ok {
		return nil, diags
	}

	out := make(map[string]float64, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		num, err := convert.Convert(v, cty.Number)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid values entry",
				Detail:   fmt.Sprintf("entry %q is not a number: %s", k.AsString(), err),
				Subject:  expr.Range().Ptr(),
			})
			continue
		}
		var amount float64
		if err := gocty.FromCtyValue(num, &amount); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid values entry",
				Detail:   fmt.Sprintf("entry %q: %s", k.AsString(), err),
				Subject:  expr.Range().Ptr(),
			})
			continue
		}
		out[k.AsString()] = amount
	}
	return out, diags
}

// decodeStringMap evaluates a module inputs expression into binding
// text. Numeric bindings are accepted and carried as their literal text.
func decodeStringMap(expr hcl.Expression) (map[string]string, hcl.Diagnostics) {
	val, ok, diags := objectValue(expr, "inputs")
	if !ok {
		return nil, diags
	}

	out := make(map[string]string, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		str, err := convert.Convert(v, cty.String)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid inputs entry",
				Detail:   fmt.Sprintf("entry %q is not text: %s", k.AsString(), err),
				Subject:  expr.Range().Ptr(),
			})
			continue
		}
		out[k.AsString()] = str.AsString()
	}
	return out, diags
}

// objectValue evaluates expr and requires an object or map result. The
// second return is false when the attribute was absent, null, or not an
// object.
func objectValue(expr hcl.Expression, attr string) (cty.Value, bool, hcl.Diagnostics) {
	if expr == nil {
		return cty.NilVal, false, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, false, diags
	}
	if val.IsNull() {
		return cty.NilVal, false, diags
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  fmt.Sprintf("Invalid %s attribute", attr),
			Detail:   fmt.Sprintf("expected key = value entries, got %s", val.Type().FriendlyName()),
			Subject:  expr.Range().Ptr(),
		})
		return cty.NilVal, false, diags
	}
	return val, true, diags
}
