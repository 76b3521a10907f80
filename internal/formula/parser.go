package formula

import (
	"fmt"
	"math"
	"strconv"

	"github.com/acrebrook/modelgrid/internal/refs"
)

// parser is a recursive-descent parser over the restricted formula
// grammar: + - * / ^ with conventional precedence, unary minus, parens,
// scalar functions, and whole-array functions. ^ is right-associative and
// binds tighter than unary minus (-2^2 is -(2^2)).
type parser struct {
	toks []token
	pos  int
}

func parse(src string) (Node, error) {
	toks, err := lexAll(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %s at offset %d", tok.Kind, tok.Pos)
	}
	return root, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.Kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return token{}, fmt.Errorf("expected %s but found %s at offset %d", kind, tok.Kind, tok.Pos)
	}
	return p.advance(), nil
}

func (p *parser) parseAdditive() (Node, error) {
	x, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().Kind
		if op != tokenPlus && op != tokenMinus {
			return x, nil
		}
		p.advance()
		y, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: op, X: x, Y: y}
	}
}

func (p *parser) parseMultiplicative() (Node, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().Kind
		if op != tokenStar && op != tokenSlash {
			return x, nil
		}
		p.advance()
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: op, X: x, Y: y}
	}
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().Kind == tokenMinus {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{X: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != tokenCaret {
		return x, nil
	}
	p.advance()
	y, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: tokenCaret, X: x, Y: y}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.peek()
	switch tok.Kind {
	case tokenNumber:
		p.advance()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at offset %d", tok.Text, tok.Pos)
		}
		return &NumberLit{Value: v}, nil

	case tokenRef:
		p.advance()
		r, err := refs.Parse(tok.Text)
		if err != nil {
			return nil, fmt.Errorf("at offset %d: %w", tok.Pos, err)
		}
		return &RefExpr{Ref: r}, nil

	case tokenIdent:
		return p.parseCall()

	case tokenLParen:
		p.advance()
		x, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return x, nil
	}
	return nil, fmt.Errorf("unexpected %s at offset %d", tok.Kind, tok.Pos)
}

func (p *parser) parseCall() (Node, error) {
	name := p.advance()
	if _, err := p.expect(tokenLParen); err != nil {
		return nil, fmt.Errorf("unknown name %q at offset %d (function call expected)", name.Text, name.Pos)
	}

	var args []Node
	if p.peek().Kind != tokenRParen {
		for {
			arg, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Kind != tokenComma {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(tokenRParen); err != nil {
		return nil, err
	}

	if spec, ok := scalarFuncs[name.Text]; ok {
		if err := checkArity(name.Text, spec.arity, len(args)); err != nil {
			return nil, err
		}
		return &CallExpr{Name: name.Text, Args: args}, nil
	}
	if spec, ok := arrayFuncs[name.Text]; ok {
		return buildArrayCall(name.Text, spec, args)
	}
	return nil, fmt.Errorf("unknown function %q at offset %d", name.Text, name.Pos)
}

func checkArity(name string, arity, got int) error {
	if arity < 0 {
		if got < -arity {
			return fmt.Errorf("%s expects at least %d arguments, got %d", name, -arity, got)
		}
		return nil
	}
	if got != arity {
		return fmt.Errorf("%s expects %d argument(s), got %d", name, arity, got)
	}
	return nil
}

func buildArrayCall(name string, spec arraySpec, args []Node) (Node, error) {
	want := 1
	if spec.hasCount {
		want = 2
	}
	if len(args) != want {
		return nil, fmt.Errorf("%s expects %d argument(s), got %d", name, want, len(args))
	}
	call := &ArrayCallExpr{Name: name, Arg: args[0]}
	if spec.hasCount {
		n, ok := intLiteral(args[1])
		if !ok {
			return nil, fmt.Errorf("%s period count must be an integer literal", name)
		}
		if n < spec.minCount {
			return nil, fmt.Errorf("%s period count must be at least %d, got %d", name, spec.minCount, n)
		}
		call.Count = n
	}
	return call, nil
}

func intLiteral(n Node) (int, bool) {
	switch v := n.(type) {
	case *NumberLit:
		if v.Value == math.Trunc(v.Value) {
			return int(v.Value), true
		}
	case *UnaryExpr:
		if lit, ok := v.X.(*NumberLit); ok && lit.Value == math.Trunc(lit.Value) {
			return -int(lit.Value), true
		}
	}
	return 0, false
}
