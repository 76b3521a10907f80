// Package expand stamps module templates into a recipe. Each instance
// receives one contiguous block of calculation IDs, extras first, then
// template outputs in template order, so positional module references
// stay stable across recompiles.
package expand

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/acrebrook/modelgrid/internal/ctxlog"
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/templates"
)

// Placeholder forms, replaced in strict priority order so the longer
// $input.KEY.Start form never loses its suffix to the shorter form, and
// text pasted by an earlier pass is still visible to later passes.
var (
	inputFlagPattern = regexp.MustCompile(`\$input\.([A-Za-z_]\w*)\.(Start|End)\b`)
	inputPattern     = regexp.MustCompile(`\$input\.([A-Za-z_]\w*)`)
	selfPattern      = regexp.MustCompile(`\$self\.([A-Za-z_]\w*)`)
	crossPattern     = regexp.MustCompile(`\$M(\d+)\.([A-Za-z_]\w*)`)
	flagRef          = regexp.MustCompile(`^F\d+$`)
	flagSuffix       = regexp.MustCompile(`^\.(Start|End)\b`)
)

type instance struct {
	inst *recipe.ModuleInstance
	tpl  *templates.Template

	// self maps output and extra keys to R references.
	self map[string]string

	// bound maps input keys to their effective binding text, defaults
	// applied.
	bound map[string]string

	ids []int
}

// Modules expands every module instance in rec, appending the generated
// calculations and publishing rec.ModuleRefs. Problems surface as
// diagnostics on the owning module; an unresolved placeholder is left
// verbatim so downstream validation names it.
func Modules(ctx context.Context, rec *recipe.Recipe, reg *templates.Registry, alloc *recipe.IDAllocator) diag.Diagnostics {
	logger := ctxlog.FromContext(ctx)
	var diags diag.Diagnostics

	if rec.ModuleRefs == nil {
		rec.ModuleRefs = make(map[string]int)
	}

	// Pass 1: allocate IDs and publish the reference maps, so pass 2 can
	// resolve forward references between instances.
	states := make([]*instance, len(rec.Modules))
	byIndex := make(map[int]*instance, len(rec.Modules))
	for i, inst := range rec.Modules {
		if inst.Index == 0 {
			inst.Index = i + 1
		}
		subject := "module " + inst.Name

		tpl, ok := reg.Get(inst.Template)
		if !ok {
			diags = diags.Append(&diag.Diagnostic{
				Severity: diag.SeverityError,
				Summary:  "Unknown module template",
				Detail:   fmt.Sprintf("no template %q is registered (have: %s)", inst.Template, strings.Join(reg.Kinds(), ", ")),
				Subject:  subject,
			})
			continue
		}

		st := &instance{
			inst: inst,
			tpl:  tpl,
			self: make(map[string]string),
			ids:  alloc.Block(len(inst.Extras) + len(tpl.Outputs)),
		}
		states[i] = st
		byIndex[inst.Index] = st

		for j, ex := range inst.Extras {
			if _, dup := st.self[ex.Key]; dup {
				diags = diags.Append(&diag.Diagnostic{
					Severity: diag.SeverityError,
					Summary:  "Duplicate extra calculation key",
					Detail:   fmt.Sprintf("extra calculation key %q is declared twice", ex.Key),
					Subject:  subject,
				})
			}
			st.self[ex.Key] = "R" + strconv.Itoa(st.ids[j])
		}
		if inst.Outputs == nil {
			inst.Outputs = make(map[string]int)
		}
		for j, out := range tpl.Outputs {
			id := st.ids[len(inst.Extras)+j]
			if _, taken := st.self[out.Key]; taken {
				diags = diags.Append(&diag.Diagnostic{
					Severity: diag.SeverityError,
					Summary:  "Extra calculation shadows template output",
					Detail:   fmt.Sprintf("extra calculation key %q collides with a %q output; the template output wins", out.Key, tpl.Kind),
					Subject:  subject,
				})
			}
			st.self[out.Key] = "R" + strconv.Itoa(id)
			inst.Outputs[out.Key] = id
			rec.ModuleRefs[fmt.Sprintf("M%d.%d", inst.Index, j+1)] = id
		}

		diags = diags.Extend(st.bindInputs())
	}

	// Pass 2: substitute placeholders and emit calculations.
	for _, st := range states {
		if st == nil {
			continue
		}
		subject := "module " + st.inst.Name

		for j, ex := range st.inst.Extras {
			typ := ex.Type
			if typ == "" {
				typ = recipe.Flow
			}
			rec.Calcs = append(rec.Calcs, &recipe.Calc{
				ID:      st.ids[j],
				Name:    st.inst.Name + ": " + ex.Name,
				Formula: st.substitute(ex.Formula, byIndex, subject, &diags),
				Type:    typ,
				Module:  st.inst.Name,
			})
		}
		for j, out := range st.tpl.Outputs {
			rec.Calcs = append(rec.Calcs, &recipe.Calc{
				ID:      st.ids[len(st.inst.Extras)+j],
				Name:    st.inst.Name + ": " + out.Name,
				Formula: st.substitute(out.Formula, byIndex, subject, &diags),
				Type:    out.Type,
				Solver:  out.Solver,
				Module:  st.inst.Name,
			})
		}

		logger.DebugContext(ctx, "Module instance expanded.",
			"module", st.inst.Name, "template", st.tpl.Kind, "calcs", len(st.ids))
	}

	return diags
}

// bindInputs resolves each declared input to its effective text,
// applying defaults and reporting unbound required inputs and bindings
// no declared input matches.
func (st *instance) bindInputs() diag.Diagnostics {
	var diags diag.Diagnostics
	subject := "module " + st.inst.Name

	st.bound = make(map[string]string, len(st.tpl.Inputs))
	for _, in := range st.tpl.Inputs {
		if v, ok := st.inst.Inputs[in.Key]; ok && v != "" {
			st.bound[in.Key] = v
			continue
		}
		if in.Default != "" {
			st.bound[in.Key] = in.Default
			continue
		}
		diags = diags.Append(&diag.Diagnostic{
			Severity: diag.SeverityError,
			Summary:  "Module input not bound",
			Detail:   fmt.Sprintf("template %q requires input %q and the instance binds nothing", st.tpl.Kind, in.Key),
			Subject:  subject,
		})
	}
	for _, key := range sortedKeys(st.inst.Inputs) {
		if _, ok := st.tpl.Input(key); !ok {
			diags = diags.Warnf(subject,
				"template %q declares no input %q; the binding is ignored", st.tpl.Kind, key)
		}
	}
	return diags
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (st *instance) substitute(formula string, byIndex map[int]*instance, subject string, diags *diag.Diagnostics) string {
	out := inputFlagPattern.ReplaceAllStringFunc(formula, func(m string) string {
		sub := inputFlagPattern.FindStringSubmatch(m)
		key, suffix := sub[1], sub[2]
		binding, ok := st.bound[key]
		if !ok {
			if _, declared := st.tpl.Input(key); !declared {
				*diags = diags.Warnf(subject,
					"formula references $input.%s but template %q declares no such input", key, st.tpl.Kind)
			}
			return m
		}
		if !flagRef.MatchString(binding) {
			*diags = diags.Warnf(subject,
				"$input.%s.%s requires input %q to be bound to a flag reference, got %q", key, suffix, key, binding)
			return m
		}
		return binding + "." + suffix
	})

	// The plain form must not eat the KEY of a flag-suffix placeholder the
	// first pass deliberately left in place, so matches followed by .Start
	// or .End are skipped.
	var b strings.Builder
	last := 0
	for _, loc := range inputPattern.FindAllStringSubmatchIndex(out, -1) {
		key := out[loc[2]:loc[3]]
		if flagSuffix.MatchString(out[loc[1]:]) {
			continue
		}
		binding, ok := st.bound[key]
		if !ok {
			if _, declared := st.tpl.Input(key); !declared {
				*diags = diags.Warnf(subject,
					"formula references $input.%s but template %q declares no such input", key, st.tpl.Kind)
			}
			continue
		}
		b.WriteString(out[last:loc[0]])
		b.WriteString(binding)
		last = loc[1]
	}
	b.WriteString(out[last:])
	out = b.String()

	out = selfPattern.ReplaceAllStringFunc(out, func(m string) string {
		key := selfPattern.FindStringSubmatch(m)[1]
		ref, ok := st.self[key]
		if !ok {
			*diags = diags.Warnf(subject,
				"formula references $self.%s but the instance defines no output or extra calculation under that key", key)
			return m
		}
		return ref
	})

	out = crossPattern.ReplaceAllStringFunc(out, func(m string) string {
		sub := crossPattern.FindStringSubmatch(m)
		idx, _ := strconv.Atoi(sub[1])
		key := sub[2]
		other, ok := byIndex[idx]
		if !ok {
			*diags = diags.Warnf(subject,
				"formula references $M%d.%s but no module instance has index %d", idx, key, idx)
			return m
		}
		id, ok := other.inst.Outputs[key]
		if !ok {
			*diags = diags.Warnf(subject,
				"module %q (M%d) publishes no output %q", other.inst.Name, idx, key)
			return m
		}
		return "R" + strconv.Itoa(id)
	})

	return strings.ReplaceAll(out, "M_SELF.", fmt.Sprintf("M%d.", st.inst.Index))
}
