package parser

import (
	"fmt"
	"strings"

	"github.com/wippyai/wacli/wat/internal/ast"
	"github.com/wippyai/wacli/wat/internal/token"
)

type funcCtx struct {
	locals  map[string]uint32
	nlocals uint32
	labels  []string
}

func newFuncCtx() *funcCtx {
	return &funcCtx{locals: map[string]uint32{}}
}

func (c *funcCtx) addLocal(name string) {
	if name != "" {
		c.locals[name] = c.nlocals
	}
	c.nlocals++
}

func (c *funcCtx) localIndex(n *node) (uint32, error) {
	if n.leaf && n.tok.Type == token.Ident {
		idx, ok := c.locals[n.tok.Value]
		if !ok {
			return 0, fmt.Errorf("%s: unknown local %s", n.pos(), n.tok.Value)
		}
		return idx, nil
	}
	return parseU32(n)
}

// labelIndex resolves a branch target to its relative depth.
func (c *funcCtx) labelIndex(n *node) (uint32, error) {
	if n.leaf && n.tok.Type == token.Ident {
		for i := len(c.labels) - 1; i >= 0; i-- {
			if c.labels[i] == n.tok.Value {
				return uint32(len(c.labels) - 1 - i), nil
			}
		}
		return 0, fmt.Errorf("%s: unknown label %s", n.pos(), n.tok.Value)
	}
	return parseU32(n)
}

type immKind int

const (
	immNone immKind = iota
	immLocal
	immGlobal
	immFunc
	immLabel
	immMemarg
	immI32
)

type opInfo struct {
	op       ast.Opcode
	imm      immKind
	defAlign uint32
}

var plainOps = map[string]opInfo{
	"unreachable": {op: ast.OpUnreachable},
	"nop":         {op: ast.OpNop},
	"br":          {op: ast.OpBr, imm: immLabel},
	"br_if":       {op: ast.OpBrIf, imm: immLabel},
	"return":      {op: ast.OpReturn},
	"call":        {op: ast.OpCall, imm: immFunc},
	"drop":        {op: ast.OpDrop},
	"select":      {op: ast.OpSelect},
	"local.get":   {op: ast.OpLocalGet, imm: immLocal},
	"local.set":   {op: ast.OpLocalSet, imm: immLocal},
	"local.tee":   {op: ast.OpLocalTee, imm: immLocal},
	"global.get":  {op: ast.OpGlobalGet, imm: immGlobal},
	"global.set":  {op: ast.OpGlobalSet, imm: immGlobal},
	"i32.load":    {op: ast.OpI32Load, imm: immMemarg, defAlign: 2},
	"i32.load8_u": {op: ast.OpI32Load8U, imm: immMemarg, defAlign: 0},
	"i32.store":   {op: ast.OpI32Store, imm: immMemarg, defAlign: 2},
	"i32.store8":  {op: ast.OpI32Store8, imm: immMemarg, defAlign: 0},
	"i32.const":   {op: ast.OpI32Const, imm: immI32},
	"i32.eqz":     {op: ast.OpI32Eqz},
	"i32.eq":      {op: ast.OpI32Eq},
	"i32.ne":      {op: ast.OpI32Ne},
	"i32.lt_s":    {op: ast.OpI32LtS},
	"i32.lt_u":    {op: ast.OpI32LtU},
	"i32.gt_s":    {op: ast.OpI32GtS},
	"i32.gt_u":    {op: ast.OpI32GtU},
	"i32.le_u":    {op: ast.OpI32LeU},
	"i32.ge_u":    {op: ast.OpI32GeU},
	"i32.add":     {op: ast.OpI32Add},
	"i32.sub":     {op: ast.OpI32Sub},
	"i32.mul":     {op: ast.OpI32Mul},
	"i32.and":     {op: ast.OpI32And},
	"i32.or":      {op: ast.OpI32Or},
	"i32.xor":     {op: ast.OpI32Xor},
	"i32.shl":     {op: ast.OpI32Shl},
	"i32.shr_u":   {op: ast.OpI32ShrU},
}

// compileBody compiles a mixed flat/folded instruction sequence.
func (p *moduleParser) compileBody(nodes []*node, ctx *funcCtx) ([]ast.Instr, error) {
	var out []ast.Instr
	i := 0
	for i < len(nodes) {
		n := nodes[i]
		if n.leaf {
			consumed, err := p.compileFlat(nodes[i:], ctx, &out)
			if err != nil {
				return nil, err
			}
			i += consumed
		} else {
			if err := p.compileFolded(n, ctx, &out); err != nil {
				return nil, err
			}
			i++
		}
	}
	return out, nil
}

// compileFlat compiles one flat instruction starting at nodes[0] and
// returns how many nodes it consumed.
func (p *moduleParser) compileFlat(nodes []*node, ctx *funcCtx, out *[]ast.Instr) (int, error) {
	n := nodes[0]
	word := n.tok.Value

	switch word {
	case "block", "loop", "if":
		op := ast.OpBlock
		if word == "loop" {
			op = ast.OpLoop
		} else if word == "if" {
			op = ast.OpIf
		}
		consumed := 1
		label := ""
		if len(nodes) > consumed && nodes[consumed].leaf && nodes[consumed].tok.Type == token.Ident {
			label = nodes[consumed].tok.Value
			consumed++
		}
		block := ast.BlockEmpty
		if len(nodes) > consumed && nodes[consumed].head() == "result" {
			types, _, err := parseValClause(nodes[consumed])
			if err != nil {
				return 0, err
			}
			if len(types) != 1 {
				return 0, fmt.Errorf("%s: block result must be a single i32", n.pos())
			}
			block = byte(ast.I32)
			consumed++
		}
		ctx.labels = append(ctx.labels, label)
		*out = append(*out, ast.Instr{Op: op, Block: block})
		return consumed, nil

	case "else":
		*out = append(*out, ast.Instr{Op: ast.OpElse})
		return 1, nil

	case "end":
		if len(ctx.labels) == 0 {
			return 0, fmt.Errorf("%s: end with no open block", n.pos())
		}
		ctx.labels = ctx.labels[:len(ctx.labels)-1]
		*out = append(*out, ast.Instr{Op: ast.OpEnd})
		return 1, nil
	}

	info, ok := plainOps[word]
	if !ok {
		return 0, fmt.Errorf("%s: unsupported instruction %q", n.pos(), word)
	}
	instr, consumed, err := p.parseImmediates(info, nodes, ctx)
	if err != nil {
		return 0, err
	}
	*out = append(*out, instr)
	return consumed, nil
}

// compileFolded compiles one parenthesized expression: operands first,
// the operator last.
func (p *moduleParser) compileFolded(n *node, ctx *funcCtx, out *[]ast.Instr) error {
	word := n.head()
	if word == "" {
		return fmt.Errorf("%s: expected instruction", n.pos())
	}
	kids := n.kids[1:]

	switch word {
	case "block", "loop":
		op := ast.OpBlock
		if word == "loop" {
			op = ast.OpLoop
		}
		label := ""
		if len(kids) > 0 && kids[0].leaf && kids[0].tok.Type == token.Ident {
			label = kids[0].tok.Value
			kids = kids[1:]
		}
		block := ast.BlockEmpty
		if len(kids) > 0 && kids[0].head() == "result" {
			block = byte(ast.I32)
			kids = kids[1:]
		}
		ctx.labels = append(ctx.labels, label)
		*out = append(*out, ast.Instr{Op: op, Block: block})
		body, err := p.compileBody(kids, ctx)
		if err != nil {
			return err
		}
		*out = append(*out, body...)
		*out = append(*out, ast.Instr{Op: ast.OpEnd})
		ctx.labels = ctx.labels[:len(ctx.labels)-1]
		return nil

	case "if":
		label := ""
		if len(kids) > 0 && kids[0].leaf && kids[0].tok.Type == token.Ident {
			label = kids[0].tok.Value
			kids = kids[1:]
		}
		block := ast.BlockEmpty
		if len(kids) > 0 && kids[0].head() == "result" {
			block = byte(ast.I32)
			kids = kids[1:]
		}
		// condition operands precede (then ...)
		thenAt := -1
		for i, k := range kids {
			if k.head() == "then" {
				thenAt = i
				break
			}
		}
		if thenAt < 0 {
			return fmt.Errorf("%s: folded if needs a (then ...) clause", n.pos())
		}
		for _, cond := range kids[:thenAt] {
			if cond.leaf {
				return fmt.Errorf("%s: if condition must be folded", cond.pos())
			}
			if err := p.compileFolded(cond, ctx, out); err != nil {
				return err
			}
		}
		ctx.labels = append(ctx.labels, label)
		*out = append(*out, ast.Instr{Op: ast.OpIf, Block: block})
		thenBody, err := p.compileBody(kids[thenAt].kids[1:], ctx)
		if err != nil {
			return err
		}
		*out = append(*out, thenBody...)
		rest := kids[thenAt+1:]
		if len(rest) > 0 {
			if len(rest) != 1 || rest[0].head() != "else" {
				return fmt.Errorf("%s: expected (else ...) after (then ...)", n.pos())
			}
			*out = append(*out, ast.Instr{Op: ast.OpElse})
			elseBody, err := p.compileBody(rest[0].kids[1:], ctx)
			if err != nil {
				return err
			}
			*out = append(*out, elseBody...)
		}
		*out = append(*out, ast.Instr{Op: ast.OpEnd})
		ctx.labels = ctx.labels[:len(ctx.labels)-1]
		return nil
	}

	info, ok := plainOps[word]
	if !ok {
		return fmt.Errorf("%s: unsupported instruction %q", n.pos(), word)
	}
	// Reconstitute a flat view: op keyword plus its immediates are leaves,
	// the remaining kids are folded operands emitted first.
	flat := append([]*node{n.kids[0]}, kids...)
	instr, consumed, err := p.parseImmediates(info, flat, ctx)
	if err != nil {
		return err
	}
	for _, operand := range flat[consumed:] {
		if operand.leaf {
			return fmt.Errorf("%s: operand must be folded", operand.pos())
		}
		if err := p.compileFolded(operand, ctx, out); err != nil {
			return err
		}
	}
	*out = append(*out, instr)
	return nil
}

// parseImmediates reads an instruction's immediates from the nodes that
// follow its keyword, returning the instruction and nodes consumed
// (keyword included).
func (p *moduleParser) parseImmediates(info opInfo, nodes []*node, ctx *funcCtx) (ast.Instr, int, error) {
	n := nodes[0]
	instr := ast.Instr{Op: info.op}
	consumed := 1

	need := func() (*node, error) {
		if consumed >= len(nodes) || !nodes[consumed].leaf {
			return nil, fmt.Errorf("%s: %s needs an immediate", n.pos(), n.tok.Value)
		}
		imm := nodes[consumed]
		consumed++
		return imm, nil
	}

	switch info.imm {
	case immNone:

	case immLocal:
		imm, err := need()
		if err != nil {
			return instr, 0, err
		}
		idx, err := ctx.localIndex(imm)
		if err != nil {
			return instr, 0, err
		}
		instr.Index = idx

	case immGlobal:
		imm, err := need()
		if err != nil {
			return instr, 0, err
		}
		idx, err := p.globalIndex(imm)
		if err != nil {
			return instr, 0, err
		}
		instr.Index = idx

	case immFunc:
		imm, err := need()
		if err != nil {
			return instr, 0, err
		}
		idx, err := p.funcIndex(imm)
		if err != nil {
			return instr, 0, err
		}
		instr.Index = idx

	case immLabel:
		imm, err := need()
		if err != nil {
			return instr, 0, err
		}
		idx, err := ctx.labelIndex(imm)
		if err != nil {
			return instr, 0, err
		}
		instr.Index = idx

	case immI32:
		imm, err := need()
		if err != nil {
			return instr, 0, err
		}
		v, err := parseI32(imm)
		if err != nil {
			return instr, 0, err
		}
		instr.Const = v

	case immMemarg:
		instr.Align = info.defAlign
		for consumed < len(nodes) && nodes[consumed].leaf && nodes[consumed].tok.Type == token.Keyword {
			word := nodes[consumed].tok.Value
			if v, ok := strings.CutPrefix(word, "offset="); ok {
				off, err := parseMemargValue(nodes[consumed], v)
				if err != nil {
					return instr, 0, err
				}
				instr.Offset = off
				consumed++
				continue
			}
			if v, ok := strings.CutPrefix(word, "align="); ok {
				align, err := parseMemargValue(nodes[consumed], v)
				if err != nil {
					return instr, 0, err
				}
				// binary form takes log2
				log := uint32(0)
				for 1<<log < align {
					log++
				}
				if 1<<log != align {
					return instr, 0, fmt.Errorf("%s: align must be a power of two", nodes[consumed].pos())
				}
				instr.Align = log
				consumed++
				continue
			}
			break
		}
	}

	return instr, consumed, nil
}

func parseMemargValue(n *node, s string) (uint32, error) {
	fake := &node{tok: token.Token{Type: token.Number, Value: s, Line: n.tok.Line, Col: n.tok.Col}, leaf: true}
	return parseU32(fake)
}
