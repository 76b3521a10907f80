package refs

import "sort"

// AliasTable maps authoring reference text to the positional reference
// text in effect once inactive groups stop consuming a rank. Only entries
// where the two differ are stored.
type AliasTable map[string]string

// Resolve translates an authoring reference, passing unaliased text
// through unchanged.
func (t AliasTable) Resolve(s string) string {
	if p, ok := t[s]; ok {
		return p
	}
	return s
}

// Alias is one authoring-to-positional pairing.
type Alias struct {
	Authored   string
	Positional string
}

// Sorted returns the table's entries ordered by authored reference.
func (t AliasTable) Sorted() []Alias {
	out := make([]Alias, 0, len(t))
	for a, p := range t {
		out = append(out, Alias{Authored: a, Positional: p})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, erri := Parse(out[i].Authored)
		rj, errj := Parse(out[j].Authored)
		if erri == nil && errj == nil {
			return Compare(ri, rj) < 0
		}
		return out[i].Authored < out[j].Authored
	})
	return out
}
