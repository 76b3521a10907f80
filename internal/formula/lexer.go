package formula

import "fmt"

// lexer scans a formula into tokens. References are recognized as single
// tokens here so that malformed ones surface as parse errors naming the
// offending text rather than as puzzling arithmetic failures.
type lexer struct {
	src string
	pos int
}

func lexAll(src string) ([]token, error) {
	l := &lexer{src: src}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == tokenEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{Kind: tokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.scanNumber(start), nil
	case isAlpha(c):
		return l.scanWord(start)
	}

	l.pos++
	switch c {
	case '+':
		return token{Kind: tokenPlus, Text: "+", Pos: start}, nil
	case '-':
		return token{Kind: tokenMinus, Text: "-", Pos: start}, nil
	case '*':
		return token{Kind: tokenStar, Text: "*", Pos: start}, nil
	case '/':
		return token{Kind: tokenSlash, Text: "/", Pos: start}, nil
	case '^':
		return token{Kind: tokenCaret, Text: "^", Pos: start}, nil
	case '(':
		return token{Kind: tokenLParen, Text: "(", Pos: start}, nil
	case ')':
		return token{Kind: tokenRParen, Text: ")", Pos: start}, nil
	case ',':
		return token{Kind: tokenComma, Text: ",", Pos: start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at offset %d", string(c), start)
}

func (l *lexer) scanNumber(start int) token {
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	// Optional exponent.
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		mark := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = mark
		}
	}
	return token{Kind: tokenNumber, Text: l.src[start:l.pos], Pos: start}
}

// scanWord handles identifiers, reference tokens, and the time-constant
// form T.{key}. A category letter directly followed by a digit starts a
// reference; the dotted tail is consumed greedily so that the reference
// parser sees the whole text.
func (l *lexer) scanWord(start int) (token, error) {
	c := l.src[l.pos]

	if isRefCategory(c) && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		// Dotted numeric parts, then an optional word part (flag suffixes).
		for l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
			l.pos++
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isAlpha(l.src[l.pos+1]) {
			l.pos++
			for l.pos < len(l.src) && isWordChar(l.src[l.pos]) {
				l.pos++
			}
		}
		return token{Kind: tokenRef, Text: l.src[start:l.pos], Pos: start}, nil
	}

	if c == 'T' && l.pos+2 < len(l.src) && l.src[l.pos+1] == '.' && isAlpha(l.src[l.pos+2]) {
		l.pos += 2
		for l.pos < len(l.src) && isWordChar(l.src[l.pos]) {
			l.pos++
		}
		return token{Kind: tokenRef, Text: l.src[start:l.pos], Pos: start}, nil
	}

	for l.pos < len(l.src) && isWordChar(l.src[l.pos]) {
		l.pos++
	}
	return token{Kind: tokenIdent, Text: l.src[start:l.pos], Pos: start}, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
func isWordChar(c byte) bool { return isAlpha(c) || isDigit(c) }

func isRefCategory(c byte) bool {
	switch c {
	case 'V', 'S', 'C', 'L', 'F', 'I', 'R', 'M':
		return true
	}
	return false
}
