package refs

import "regexp"

// candidatePattern matches every reference-shaped substring of a formula.
// The category alternatives mirror the validator's contract: calculations,
// positional input prefixes with optional dotted parts, flags with optional
// Start/End, module outputs, indices, and time constants.
var candidatePattern = regexp.MustCompile(
	`\bR\d+\b|\b[VSC]\d+(\.\d+)?\b|\bL\d+(\.\d+(\.\d+)?)?\b|\bF\d+(\.Start|\.End)?\b|\bM\d+\.\d+\b|\bI\d+\b|\bT\.\w+\b`)

// Extract returns every parseable reference in src, in order of
// appearance, duplicates included.
func Extract(src string) []Ref {
	var out []Ref
	for _, m := range candidatePattern.FindAllString(src, -1) {
		r, err := Parse(m)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ExtractUnique returns the distinct references in src, preserving first
// appearance order.
func ExtractUnique(src string) []Ref {
	seen := make(map[string]bool)
	var out []Ref
	for _, r := range Extract(src) {
		key := r.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
