package parser

import (
	"fmt"

	"github.com/wippyai/wacli/wat/internal/ast"
	"github.com/wippyai/wacli/wat/internal/token"
)

// node is one element of the s-expression tree: either a leaf token or a
// parenthesized list.
type node struct {
	tok  token.Token
	kids []*node
	leaf bool
}

func (n *node) pos() string {
	return fmt.Sprintf("%d:%d", n.tok.Line, n.tok.Col)
}

// head returns the leading keyword of a list node, or "".
func (n *node) head() string {
	if n.leaf || len(n.kids) == 0 {
		return ""
	}
	k := n.kids[0]
	if k.leaf && k.tok.Type == token.Keyword {
		return k.tok.Value
	}
	return ""
}

// Parse turns a token stream into a module. The grammar is the subset the
// registry code generator emits: function imports, i32 funcs with folded
// or flat bodies, one memory, mutable i32 globals, exports, and active
// data segments.
func Parse(tokens []token.Token) (*ast.Module, error) {
	root, err := buildTree(tokens)
	if err != nil {
		return nil, err
	}
	if root.head() != "module" {
		return nil, fmt.Errorf("%s: expected (module ...)", root.pos())
	}

	p := &moduleParser{
		mod:     &ast.Module{},
		funcs:   map[string]uint32{},
		globals: map[string]uint32{},
		types:   map[string]uint32{},
	}

	fields := root.kids[1:]
	// optional module id
	if len(fields) > 0 && fields[0].leaf && fields[0].tok.Type == token.Ident {
		fields = fields[1:]
	}
	return p.parseFields(fields)
}

// buildTree parses one top-level s-expression.
func buildTree(tokens []token.Token) (*node, error) {
	pos := 0
	var build func() (*node, error)
	build = func() (*node, error) {
		if pos >= len(tokens) {
			return nil, fmt.Errorf("unexpected end of input")
		}
		t := tokens[pos]
		if t.Type == token.RParen {
			return nil, fmt.Errorf("%d:%d: unexpected ')'", t.Line, t.Col)
		}
		if t.Type != token.LParen {
			pos++
			return &node{tok: t, leaf: true}, nil
		}
		n := &node{tok: t}
		pos++
		for {
			if pos >= len(tokens) {
				return nil, fmt.Errorf("%d:%d: unclosed '('", t.Line, t.Col)
			}
			if tokens[pos].Type == token.RParen {
				pos++
				return n, nil
			}
			kid, err := build()
			if err != nil {
				return nil, err
			}
			n.kids = append(n.kids, kid)
		}
	}

	root, err := build()
	if err != nil {
		return nil, err
	}
	if pos != len(tokens) {
		t := tokens[pos]
		return nil, fmt.Errorf("%d:%d: trailing tokens after module", t.Line, t.Col)
	}
	return root, nil
}
