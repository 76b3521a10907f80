package namespace

import (
	"github.com/acrebrook/modelgrid/internal/recipe"
	"github.com/acrebrook/modelgrid/internal/refs"
)

// GroupRank records where one input group lands in the positional scan.
// Pos is the rank among active groups of the same prefix; Authored is the
// rank counting every declared group of that prefix, active or not. The
// two differ exactly when an earlier group of the prefix is inactive,
// which is what the alias table captures.
type GroupRank struct {
	Group    *recipe.Group
	Kind     refs.Kind
	Pos      int
	Authored int
	Active   bool
}

var modeKinds = map[recipe.GroupMode]refs.Kind{
	recipe.ModeConstant: refs.KindConstant,
	recipe.ModeValues:   refs.KindValues,
	recipe.ModeSeries:   refs.KindSeries,
	recipe.ModeLookup:   refs.KindLookup,
}

// scanTiers fixes the mode priority of the positional scan. Timing groups
// run first but mint no prefix; series and values groups share a tier in
// declaration order.
var scanTiers = [][]recipe.GroupMode{
	{recipe.ModeTiming},
	{recipe.ModeConstant},
	{recipe.ModeSeries, recipe.ModeValues},
	{recipe.ModeLookup},
}

// ScanRanks runs the positional scan over the recipe's groups and returns
// a rank record per prefix-minting group, in scan order.
func ScanRanks(rec *recipe.Recipe) []GroupRank {
	pos := make(map[refs.Kind]int)
	authored := make(map[refs.Kind]int)
	var out []GroupRank

	for _, tier := range scanTiers {
		inTier := func(m recipe.GroupMode) bool {
			for _, tm := range tier {
				if m == tm {
					return true
				}
			}
			return false
		}
		for _, g := range rec.Groups {
			if !inTier(g.Mode) {
				continue
			}
			kind, mints := modeKinds[g.Mode]
			if !mints {
				continue
			}
			authored[kind]++
			r := GroupRank{Group: g, Kind: kind, Authored: authored[kind], Active: g.Active()}
			if g.Active() {
				pos[kind]++
				r.Pos = pos[kind]
			}
			out = append(out, r)
		}
	}
	return out
}
