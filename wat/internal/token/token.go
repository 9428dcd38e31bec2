package token

import "fmt"

// Type classifies a token.
type Type int

const (
	LParen Type = iota
	RParen
	Keyword // bare word: module, func, i32.const, offset=4
	Ident   // $-prefixed identifier
	Number
	String // quoted literal, value excludes the quotes
)

// Token is one lexical element with its source position.
type Token struct {
	Type  Type
	Value string
	Line  int
	Col   int
}

func (t Token) String() string {
	switch t.Type {
	case LParen:
		return "("
	case RParen:
		return ")"
	case String:
		return fmt.Sprintf("%q", t.Value)
	}
	return t.Value
}

// Tokenize splits WAT source into tokens. Line comments (;;) and block
// comments ((; ;), nesting allowed) are discarded.
func Tokenize(src string) ([]Token, error) {
	var tokens []Token
	line, col := 1, 1
	i := 0

	advance := func(n int) {
		for j := 0; j < n; j++ {
			if src[i+j] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
		i += n
	}

	for i < len(src) {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			advance(1)

		case c == ';' && i+1 < len(src) && src[i+1] == ';':
			for i < len(src) && src[i] != '\n' {
				advance(1)
			}

		case c == ';':
			return nil, fmt.Errorf("%d:%d: stray ';'", line, col)

		case c == '(' && i+1 < len(src) && src[i+1] == ';':
			startLine, startCol := line, col
			depth := 1
			advance(2)
			for i < len(src) && depth > 0 {
				if src[i] == '(' && i+1 < len(src) && src[i+1] == ';' {
					depth++
					advance(2)
				} else if src[i] == ';' && i+1 < len(src) && src[i+1] == ')' {
					depth--
					advance(2)
				} else {
					advance(1)
				}
			}
			if depth > 0 {
				return nil, fmt.Errorf("%d:%d: unterminated block comment", startLine, startCol)
			}

		case c == '(':
			tokens = append(tokens, Token{Type: LParen, Value: "(", Line: line, Col: col})
			advance(1)

		case c == ')':
			tokens = append(tokens, Token{Type: RParen, Value: ")", Line: line, Col: col})
			advance(1)

		case c == '"':
			startLine, startCol := line, col
			advance(1)
			start := i
			for i < len(src) && src[i] != '"' {
				if src[i] == '\\' && i+1 < len(src) {
					advance(2)
				} else {
					advance(1)
				}
			}
			if i >= len(src) {
				return nil, fmt.Errorf("%d:%d: unterminated string", startLine, startCol)
			}
			tokens = append(tokens, Token{Type: String, Value: src[start:i], Line: startLine, Col: startCol})
			advance(1)

		default:
			startLine, startCol := line, col
			start := i
			for i < len(src) && !isDelimiter(src[i]) {
				advance(1)
			}
			word := src[start:i]
			typ := Keyword
			if word[0] == '$' {
				typ = Ident
			} else if isNumberStart(word) {
				typ = Number
			}
			tokens = append(tokens, Token{Type: typ, Value: word, Line: startLine, Col: startCol})
		}
	}

	return tokens, nil
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '(', ')', '"', ';':
		return true
	}
	return false
}

func isNumberStart(word string) bool {
	c := word[0]
	if c >= '0' && c <= '9' {
		return true
	}
	if (c == '-' || c == '+') && len(word) > 1 {
		d := word[1]
		return d >= '0' && d <= '9'
	}
	return false
}
