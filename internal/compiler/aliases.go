package compiler

import (
	"github.com/acrebrook/modelgrid/internal/namespace"
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
)

// buildAliases records, for every group whose positional rank differs
// from its authoring rank, the mapping from authoring references to
// positional references: the group prefix itself and every addressable
// ref beneath it. Exporters that mix the two addressing schemes depend
// on this table being complete.
func buildAliases(rec *recipe.Recipe) refs.AliasTable {
	table := make(refs.AliasTable)
	for _, gr := range namespace.ScanRanks(rec) {
		if !gr.Active || gr.Pos == gr.Authored {
			continue
		}
		table[refs.Group(gr.Kind, gr.Authored).String()] = refs.Group(gr.Kind, gr.Pos).String()
		if gr.Kind == refs.KindLookup {
			for s, sg := range gr.Group.SubGroups {
				table[refs.Input(refs.KindLookup, gr.Authored, s+1).String()] =
					refs.Input(refs.KindLookup, gr.Pos, s+1).String()
				for o := range sg.Options {
					table[refs.Option(gr.Authored, s+1, o+1).String()] =
						refs.Option(gr.Pos, s+1, o+1).String()
				}
			}
			continue
		}
		for i := range gr.Group.Inputs {
			table[refs.Input(gr.Kind, gr.Authored, i+1).String()] =
				refs.Input(gr.Kind, gr.Pos, i+1).String()
		}
	}
	return table
}
