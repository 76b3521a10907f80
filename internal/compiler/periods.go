package compiler

import (
	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/spec"
	"github.com/acrebrook/modelgrid/internal/timegrid"
)

// pendingPeriod carries one key period through timing overrides and
// anchor resolution. start and end are grid offsets and may land outside
// the horizon; the namespace clamps when it builds the flag arrays.
type pendingPeriod struct {
	src      *spec.KeyPeriod
	id       int
	duration int
	offset   int
	abs      timegrid.Month
	resolved bool
	failed   bool
	start    int
	end      int
}

// resolveKeyPeriods turns the declared key periods into absolute period
// ranges. Timing-group inputs override duration and offset first, then
// anchors resolve iteratively; whatever remains unresolved is warned
// about and left inactive rather than guessed at.
func resolveKeyPeriods(model *spec.Model, grid *timegrid.Grid, diags diag.Diagnostics) ([]*recipe.KeyPeriod, diag.Diagnostics) {
	byName := make(map[string]*pendingPeriod, len(model.KeyPeriods))
	pending := make([]*pendingPeriod, 0, len(model.KeyPeriods))

	for i, kp := range model.KeyPeriods {
		p := &pendingPeriod{src: kp, id: i + 1, offset: kp.Offset}
		if kp.Duration != "" {
			d, err := timegrid.ParseDuration(kp.Duration)
			if err != nil {
				diags = diags.Errorf("key period "+kp.Name, "duration: %v", err)
				p.failed = true
			} else {
				p.duration = d
			}
		}
		pending = append(pending, p)
		if _, dup := byName[kp.Name]; dup {
			diags = diags.Errorf("key period "+kp.Name, "a key period named %q is already declared", kp.Name)
			continue
		}
		byName[kp.Name] = p
	}

	diags = applyTimingInputs(model, byName, diags)

	for _, p := range pending {
		diags = validateAnchor(p, diags)
	}

	// Anchored periods resolve once their target has; iterate until a full
	// pass makes no progress. Missing targets and anchor cycles simply
	// never resolve.
	for {
		progressed := false
		for _, p := range pending {
			if p.resolved || p.failed {
				continue
			}
			if resolveOne(p, byName, grid) {
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	out := make([]*recipe.KeyPeriod, len(pending))
	for i, p := range pending {
		kp := &recipe.KeyPeriod{ID: p.id, Name: p.src.Name}
		if p.resolved {
			kp.Active = true
			kp.Start = p.start
			kp.End = p.end
		} else if !p.failed {
			diags = diags.Warnf("key period "+p.src.Name,
				"anchor could not be resolved; the key period is inactive and its flags stay zero")
		}
		out[i] = kp
	}
	return out, diags
}

// applyTimingInputs binds timing-group inputs onto their key periods.
// The input value is a whole number of months.
func applyTimingInputs(model *spec.Model, byName map[string]*pendingPeriod, diags diag.Diagnostics) diag.Diagnostics {
	for _, g := range model.Groups {
		if g.Mode != string(recipe.ModeTiming) {
			continue
		}
		for _, in := range g.Inputs {
			subject := "timing input " + in.Name
			p, ok := byName[in.KeyPeriod]
			if !ok {
				diags = diags.Warnf(subject, "no key period named %q; the input has no effect", in.KeyPeriod)
				continue
			}
			months := int(in.Value)
			switch in.Field {
			case recipe.FieldDuration:
				if months < 1 {
					diags = diags.Warnf(subject, "duration override %v is below one month; keeping the declared duration", in.Value)
					continue
				}
				p.duration = months
			case recipe.FieldOffset:
				p.offset = months
			default:
				diags = diags.Warnf(subject, "unknown timing field %q (want %q or %q)", in.Field, recipe.FieldDuration, recipe.FieldOffset)
			}
		}
	}
	return diags
}

func validateAnchor(p *pendingPeriod, diags diag.Diagnostics) diag.Diagnostics {
	if p.failed {
		return diags
	}
	subject := "key period " + p.src.Name

	anchors := 0
	if p.src.Start != "" {
		anchors++
	}
	if p.src.After != "" {
		anchors++
	}
	if p.src.With != "" {
		anchors++
	}
	switch anchors {
	case 0:
		p.failed = true
		return diags.Errorf(subject, "no anchor: set start, after, or with")
	case 1:
	default:
		p.failed = true
		return diags.Errorf(subject, "conflicting anchors: set exactly one of start, after, or with")
	}

	if p.src.Start != "" {
		m, err := timegrid.ParseMonth(p.src.Start)
		if err != nil {
			p.failed = true
			return diags.Errorf(subject, "start: %v", err)
		}
		p.abs = m
	}

	if p.duration < 1 {
		p.failed = true
		return diags.Errorf(subject, "no usable duration")
	}
	return diags
}

func resolveOne(p *pendingPeriod, byName map[string]*pendingPeriod, grid *timegrid.Grid) bool {
	switch {
	case p.src.Start != "":
		p.start = p.abs.Sub(grid.Start()) + p.offset
	case p.src.After != "":
		target, ok := byName[p.src.After]
		if !ok || !target.resolved {
			return false
		}
		p.start = target.end + 1 + p.offset
	default:
		target, ok := byName[p.src.With]
		if !ok || !target.resolved {
			return false
		}
		p.start = target.start + p.offset
	}
	p.end = p.start + p.duration - 1
	p.resolved = true
	return true
}

// translateIndices fixes each escalation index's base period. The base
// may lie off the grid; the factor curve extrapolates through it.
func translateIndices(model *spec.Model, grid *timegrid.Grid, diags diag.Diagnostics) ([]*recipe.Index, diag.Diagnostics) {
	var out []*recipe.Index
	for i, idx := range model.Indices {
		subject := "index " + idx.Name
		rate := idx.Rate
		if rate <= -1 {
			diags = diags.Errorf(subject, "rate %v is at or below -100%%; using 0", rate)
			rate = 0
		}
		base := 0
		if idx.Base != "" {
			m, err := timegrid.ParseMonth(idx.Base)
			if err != nil {
				diags = diags.Errorf(subject, "base: %v", err)
			} else {
				base = m.Sub(grid.Start())
			}
		}
		out = append(out, &recipe.Index{
			ID:   i + 1,
			Name: idx.Name,
			Rate: rate,
			Base: base,
		})
	}
	return out, diags
}
