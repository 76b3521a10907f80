// Package refs parses, prints, and extracts the symbolic references that
// name every addressable value in a model: inputs by positional prefix
// (V1.3, S2.10, C1.19, L1.2.1), key-period flags (F7, F7.Start, F7.End),
// escalation indices (I2), time constants (T.DiM), calculations (R195),
// and module outputs (M3.1).
package refs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the reference category.
type Kind int

const (
	KindInvalid Kind = iota
	KindValues       // V{group}.{input}
	KindSeries       // S{group}.{input}
	KindConstant     // C{group}.{input}
	KindLookup       // L{group}.{sub} or L{group}.{sub}.{option}
	KindFlag         // F{id} with optional .Start/.End
	KindIndex        // I{id}
	KindTime         // T.{key}
	KindCalc         // R{id}
	KindModule       // M{module}.{output}
)

var kindPrefixes = map[Kind]string{
	KindValues:   "V",
	KindSeries:   "S",
	KindConstant: "C",
	KindLookup:   "L",
	KindFlag:     "F",
	KindIndex:    "I",
	KindTime:     "T",
	KindCalc:     "R",
	KindModule:   "M",
}

var prefixKinds = map[byte]Kind{
	'V': KindValues,
	'S': KindSeries,
	'C': KindConstant,
	'L': KindLookup,
	'F': KindFlag,
	'I': KindIndex,
	'T': KindTime,
	'R': KindCalc,
	'M': KindModule,
}

// Prefix returns the category letter.
func (k Kind) Prefix() string { return kindPrefixes[k] }

// Suffix marks the .Start/.End variants of a flag reference.
type Suffix int

const (
	SuffixNone Suffix = iota
	SuffixStart
	SuffixEnd
)

func (s Suffix) String() string {
	switch s {
	case SuffixStart:
		return ".Start"
	case SuffixEnd:
		return ".End"
	default:
		return ""
	}
}

// Ref is one parsed reference. A, B and C hold the dotted numeric parts in
// order; parts a category does not use stay zero. Key holds the word part
// of a time-constant reference.
type Ref struct {
	Kind   Kind
	A      int
	B      int
	C      int
	Key    string
	Suffix Suffix
}

// Constructors for the common cases.

func Calc(id int) Ref              { return Ref{Kind: KindCalc, A: id} }
func Flag(id int, s Suffix) Ref    { return Ref{Kind: KindFlag, A: id, Suffix: s} }
func Index(id int) Ref             { return Ref{Kind: KindIndex, A: id} }
func Time(key string) Ref          { return Ref{Kind: KindTime, Key: key} }
func Module(mod, out int) Ref      { return Ref{Kind: KindModule, A: mod, B: out} }
func Group(k Kind, g int) Ref      { return Ref{Kind: k, A: g} }
func Input(k Kind, g, i int) Ref   { return Ref{Kind: k, A: g, B: i} }
func Option(g, sub, opt int) Ref   { return Ref{Kind: KindLookup, A: g, B: sub, C: opt} }

// String renders the canonical reference text.
func (r Ref) String() string {
	var b strings.Builder
	b.WriteString(r.Kind.Prefix())
	if r.Kind == KindTime {
		b.WriteByte('.')
		b.WriteString(r.Key)
		return b.String()
	}
	b.WriteString(strconv.Itoa(r.A))
	if r.B > 0 {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(r.B))
	}
	if r.C > 0 {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(r.C))
	}
	b.WriteString(r.Suffix.String())
	return b.String()
}

// Parse parses a reference from its text form.
func Parse(s string) (Ref, error) {
	if s == "" {
		return Ref{}, errors.New("empty reference")
	}
	kind, ok := prefixKinds[s[0]]
	if !ok {
		return Ref{}, fmt.Errorf("unknown reference category in %q", s)
	}

	if kind == KindTime {
		if len(s) < 3 || s[1] != '.' {
			return Ref{}, fmt.Errorf("malformed time constant %q (want e.g. T.DiM)", s)
		}
		key := s[2:]
		if !isWord(key) {
			return Ref{}, fmt.Errorf("malformed time constant %q", s)
		}
		return Ref{Kind: KindTime, Key: key}, nil
	}

	parts := strings.Split(s[1:], ".")
	r := Ref{Kind: kind}

	// A trailing Start/End part is only meaningful on flags.
	if kind == KindFlag && len(parts) == 2 {
		switch parts[1] {
		case "Start":
			r.Suffix = SuffixStart
		case "End":
			r.Suffix = SuffixEnd
		default:
			return Ref{}, fmt.Errorf("malformed flag reference %q (want .Start or .End)", s)
		}
		parts = parts[:1]
	}

	max := maxParts(kind)
	min := minParts(kind)
	if len(parts) < min || len(parts) > max {
		return Ref{}, fmt.Errorf("malformed reference %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return Ref{}, fmt.Errorf("malformed reference %q", s)
		}
		nums[i] = n
	}
	r.A = nums[0]
	if len(nums) > 1 {
		r.B = nums[1]
	}
	if len(nums) > 2 {
		r.C = nums[2]
	}
	return r, nil
}

func maxParts(k Kind) int {
	switch k {
	case KindLookup:
		return 3
	case KindValues, KindSeries, KindConstant, KindModule:
		return 2
	default:
		return 1
	}
}

func minParts(k Kind) int {
	if k == KindModule {
		return 2
	}
	return 1
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// Compare orders references by category, then by numeric parts, then by
// suffix. It gives listings a stable, human-sensible order.
func Compare(a, b Ref) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	if a.Kind == KindTime {
		return strings.Compare(a.Key, b.Key)
	}
	for _, d := range []int{a.A - b.A, a.B - b.B, a.C - b.C} {
		if d != 0 {
			return d
		}
	}
	return int(a.Suffix) - int(b.Suffix)
}
