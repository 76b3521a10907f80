package formula

import "github.com/acrebrook/modelgrid/internal/refs"

// Node is one vertex of a parsed formula tree.
type Node interface {
	node()
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
}

// RefExpr reads a namespace reference.
type RefExpr struct {
	Ref refs.Ref
}

// UnaryExpr is unary minus.
type UnaryExpr struct {
	X Node
}

// BinaryExpr applies one of + - * / ^.
type BinaryExpr struct {
	Op tokenKind
	X  Node
	Y  Node
}

// CallExpr invokes a per-period scalar function (MIN, MAX, ABS, IF).
type CallExpr struct {
	Name string
	Args []Node
}

// ArrayCallExpr invokes a whole-array function (CUMSUM, SHIFT, ...), whose
// result is computed once over the full horizon before per-period
// arithmetic runs. Count carries the literal second argument of SHIFT and
// FWDSUM.
type ArrayCallExpr struct {
	Name  string
	Arg   Node
	Count int
}

func (*NumberLit) node()     {}
func (*RefExpr) node()       {}
func (*UnaryExpr) node()     {}
func (*BinaryExpr) node()    {}
func (*CallExpr) node()      {}
func (*ArrayCallExpr) node() {}
