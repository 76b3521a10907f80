package compiler

import (
	"regexp"
	"strings"

	"github.com/acrebrook/modelgrid/internal/diag"
	"github.com/acrebrook/modelgrid/internal/namespace"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
)

// sanitizeName reduces an authoring name to symbol form: letters,
// digits, and underscores survive, spaces become underscores and
// anything else is dropped. "Fixed O&M" and "{Fixed_OM}" meet in the
// middle.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

type symbolEntry struct {
	ref      string
	original string
	kind     string
}

// symbols is the {Name} lookup table: one shared namespace over
// constants, non-constant inputs, and calculations, because a token must
// resolve to exactly one address.
type symbols struct {
	table map[string]symbolEntry
}

var nameToken = regexp.MustCompile(`\{([^{}]+)\}`)

// buildSymbols indexes every nameable entity by sanitized name. All
// calculation IDs must already be assigned so forward references
// resolve.
func buildSymbols(rec *recipe.Recipe, diags diag.Diagnostics) (*symbols, diag.Diagnostics) {
	s := &symbols{table: make(map[string]symbolEntry)}

	for _, gr := range namespace.ScanRanks(rec) {
		if !gr.Active {
			continue
		}
		switch gr.Kind {
		case refs.KindLookup:
			for i, sg := range gr.Group.SubGroups {
				diags = s.add(sg.Name, refs.Input(refs.KindLookup, gr.Pos, i+1).String(), "lookup", diags)
			}
		default:
			for i, in := range gr.Group.Inputs {
				kind := "input"
				if gr.Kind == refs.KindConstant {
					kind = "constant"
				}
				diags = s.add(in.Name, refs.Input(gr.Kind, gr.Pos, i+1).String(), kind, diags)
			}
		}
	}

	for _, c := range rec.Calcs {
		diags = s.add(c.Name, refs.Calc(c.ID).String(), "calculation", diags)
	}

	return s, diags
}

func (s *symbols) add(name, ref, kind string, diags diag.Diagnostics) diag.Diagnostics {
	key := sanitizeName(name)
	if key == "" {
		return diags.Warnf(kind+" "+name,
			"name %q sanitizes to nothing and cannot be referenced by {name}", name)
	}
	if prev, exists := s.table[key]; exists {
		return diags.Errorf("symbol "+key,
			"%s %q and %s %q both sanitize to {%s}", prev.kind, prev.original, kind, name, key)
	}
	s.table[key] = symbolEntry{ref: ref, original: name, kind: kind}
	return diags
}

// substitute rewrites every {Name} token in text to its compiled
// reference. Unknown tokens stay verbatim under a warning; the formula
// syntax check will then hold the line.
func (s *symbols) substitute(text, subject string, diags *diag.Diagnostics) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return nameToken.ReplaceAllStringFunc(text, func(m string) string {
		inner := m[1 : len(m)-1]
		entry, ok := s.table[sanitizeName(inner)]
		if !ok {
			*diags = diags.Warnf(subject,
				"no constant, input, or calculation named %q; the token is left in place", inner)
			return m
		}
		return entry.ref
	})
}
