package parser

import (
	"fmt"

	"github.com/wippyai/wacli/wat/internal/ast"
	"github.com/wippyai/wacli/wat/internal/token"
)

type moduleParser struct {
	mod     *ast.Module
	funcs   map[string]uint32
	globals map[string]uint32
	types   map[string]uint32

	pending []pendingFunc
}

// pendingFunc is a function whose body is compiled only after every
// name in the module is known, so forward calls resolve.
type pendingFunc struct {
	idx  int
	ctx  *funcCtx
	body []*node
}

func (p *moduleParser) parseFields(fields []*node) (*ast.Module, error) {
	// Group by kind so index spaces come out right even if the source
	// interleaves imports and funcs.
	var imports, funcs, rest []*node
	for _, f := range fields {
		if f.leaf {
			return nil, fmt.Errorf("%s: unexpected token %s at module level", f.pos(), f.tok)
		}
		switch f.head() {
		case "type":
			if err := p.parseType(f); err != nil {
				return nil, err
			}
		case "import":
			imports = append(imports, f)
		case "func":
			funcs = append(funcs, f)
		case "memory", "global", "export", "data":
			rest = append(rest, f)
		default:
			return nil, fmt.Errorf("%s: unsupported module field %q", f.pos(), f.head())
		}
	}

	for _, f := range imports {
		if err := p.parseImport(f); err != nil {
			return nil, err
		}
	}
	for _, f := range funcs {
		if err := p.parseFunc(f); err != nil {
			return nil, err
		}
	}
	for _, f := range rest {
		var err error
		switch f.head() {
		case "memory":
			err = p.parseMemory(f)
		case "global":
			err = p.parseGlobal(f)
		case "export":
			err = p.parseExport(f)
		case "data":
			err = p.parseData(f)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, pf := range p.pending {
		body, err := p.compileBody(pf.body, pf.ctx)
		if err != nil {
			return nil, err
		}
		p.mod.Funcs[pf.idx].Body = body
	}
	return p.mod, nil
}

func (p *moduleParser) parseType(f *node) error {
	kids := f.kids[1:]
	name := ""
	if len(kids) > 0 && kids[0].leaf && kids[0].tok.Type == token.Ident {
		name = kids[0].tok.Value
		kids = kids[1:]
	}
	if len(kids) != 1 || kids[0].head() != "func" {
		return fmt.Errorf("%s: expected (type $id? (func ...))", f.pos())
	}
	ft, restKids, err := p.parseSignature(kids[0].kids[1:])
	if err != nil {
		return err
	}
	if len(restKids) != 0 {
		return fmt.Errorf("%s: trailing clauses in func type", f.pos())
	}
	idx := p.internType(ft)
	if name != "" {
		p.types[name] = idx
	}
	return nil
}

func (p *moduleParser) parseImport(f *node) error {
	kids := f.kids[1:]
	if len(kids) != 3 || !kids[0].leaf || kids[0].tok.Type != token.String ||
		!kids[1].leaf || kids[1].tok.Type != token.String {
		return fmt.Errorf("%s: expected (import \"module\" \"name\" (func ...))", f.pos())
	}
	desc := kids[2]
	if desc.head() != "func" {
		return fmt.Errorf("%s: only function imports are supported", desc.pos())
	}

	dkids := desc.kids[1:]
	name := ""
	if len(dkids) > 0 && dkids[0].leaf && dkids[0].tok.Type == token.Ident {
		name = dkids[0].tok.Value
		dkids = dkids[1:]
	}
	typeIdx, restKids, err := p.parseTypeUse(dkids)
	if err != nil {
		return err
	}
	if len(restKids) != 0 {
		return fmt.Errorf("%s: trailing clauses in import desc", desc.pos())
	}

	idx := uint32(len(p.mod.Imports))
	if name != "" {
		if _, dup := p.funcs[name]; dup {
			return fmt.Errorf("%s: duplicate func id %s", desc.pos(), name)
		}
		p.funcs[name] = idx
	}
	p.mod.Imports = append(p.mod.Imports, ast.Import{
		Module: decodeString(kids[0].tok.Value),
		Name:   decodeString(kids[1].tok.Value),
		Type:   typeIdx,
	})
	return nil
}

func (p *moduleParser) parseFunc(f *node) error {
	kids := f.kids[1:]
	name := ""
	if len(kids) > 0 && kids[0].leaf && kids[0].tok.Type == token.Ident {
		name = kids[0].tok.Value
		kids = kids[1:]
	}

	idx := uint32(len(p.mod.Imports) + len(p.mod.Funcs))
	if name != "" {
		if _, dup := p.funcs[name]; dup {
			return fmt.Errorf("%s: duplicate func id %s", f.pos(), name)
		}
		p.funcs[name] = idx
	}

	// inline exports
	for len(kids) > 0 && kids[0].head() == "export" {
		e := kids[0]
		if len(e.kids) != 2 || !e.kids[1].leaf || e.kids[1].tok.Type != token.String {
			return fmt.Errorf("%s: expected (export \"name\")", e.pos())
		}
		p.mod.Exports = append(p.mod.Exports, ast.Export{
			Name:  decodeString(e.kids[1].tok.Value),
			Kind:  ast.ExportFunc,
			Index: idx,
		})
		kids = kids[1:]
	}

	ctx := newFuncCtx()
	ft := ast.FuncType{}
	for len(kids) > 0 && kids[0].head() == "param" {
		types, names, err := parseValClause(kids[0])
		if err != nil {
			return err
		}
		for i, vt := range types {
			ft.Params = append(ft.Params, vt)
			ctx.addLocal(names[i])
		}
		kids = kids[1:]
	}
	for len(kids) > 0 && kids[0].head() == "result" {
		types, _, err := parseValClause(kids[0])
		if err != nil {
			return err
		}
		ft.Results = append(ft.Results, types...)
		kids = kids[1:]
	}

	var locals []ast.ValType
	for len(kids) > 0 && kids[0].head() == "local" {
		types, names, err := parseValClause(kids[0])
		if err != nil {
			return err
		}
		for i, vt := range types {
			locals = append(locals, vt)
			ctx.addLocal(names[i])
		}
		kids = kids[1:]
	}

	p.mod.Funcs = append(p.mod.Funcs, ast.Func{
		Type:   p.internType(ft),
		Locals: locals,
	})
	p.pending = append(p.pending, pendingFunc{
		idx:  len(p.mod.Funcs) - 1,
		ctx:  ctx,
		body: kids,
	})
	return nil
}

func (p *moduleParser) parseMemory(f *node) error {
	kids := f.kids[1:]
	if len(kids) > 0 && kids[0].leaf && kids[0].tok.Type == token.Ident {
		kids = kids[1:]
	}
	for len(kids) > 0 && kids[0].head() == "export" {
		e := kids[0]
		if len(e.kids) != 2 || !e.kids[1].leaf || e.kids[1].tok.Type != token.String {
			return fmt.Errorf("%s: expected (export \"name\")", e.pos())
		}
		p.mod.Exports = append(p.mod.Exports, ast.Export{
			Name:  decodeString(e.kids[1].tok.Value),
			Kind:  ast.ExportMemory,
			Index: uint32(len(p.mod.Memories)),
		})
		kids = kids[1:]
	}

	mem := ast.Memory{}
	if len(kids) < 1 {
		return fmt.Errorf("%s: memory needs a min limit", f.pos())
	}
	min, err := parseU32(kids[0])
	if err != nil {
		return err
	}
	mem.Min = min
	kids = kids[1:]
	if len(kids) > 0 {
		max, err := parseU32(kids[0])
		if err != nil {
			return err
		}
		mem.Max = max
		mem.HasMax = true
		kids = kids[1:]
	}
	if len(kids) != 0 {
		return fmt.Errorf("%s: trailing clauses in memory", f.pos())
	}
	p.mod.Memories = append(p.mod.Memories, mem)
	return nil
}

func (p *moduleParser) parseGlobal(f *node) error {
	kids := f.kids[1:]
	name := ""
	if len(kids) > 0 && kids[0].leaf && kids[0].tok.Type == token.Ident {
		name = kids[0].tok.Value
		kids = kids[1:]
	}
	if len(kids) != 2 {
		return fmt.Errorf("%s: expected (global $id? type (i32.const n))", f.pos())
	}

	g := ast.Global{}
	typ := kids[0]
	if typ.head() == "mut" {
		g.Mutable = true
		if len(typ.kids) != 2 || !typ.kids[1].leaf || typ.kids[1].tok.Value != "i32" {
			return fmt.Errorf("%s: only (mut i32) globals are supported", typ.pos())
		}
	} else if !typ.leaf || typ.tok.Value != "i32" {
		return fmt.Errorf("%s: only i32 globals are supported", typ.pos())
	}

	init := kids[1]
	if init.head() != "i32.const" || len(init.kids) != 2 {
		return fmt.Errorf("%s: global initializer must be (i32.const n)", init.pos())
	}
	v, err := parseI32(init.kids[1])
	if err != nil {
		return err
	}
	g.Init = v

	if name != "" {
		if _, dup := p.globals[name]; dup {
			return fmt.Errorf("%s: duplicate global id %s", f.pos(), name)
		}
		p.globals[name] = uint32(len(p.mod.Globals))
	}
	p.mod.Globals = append(p.mod.Globals, g)
	return nil
}

func (p *moduleParser) parseExport(f *node) error {
	kids := f.kids[1:]
	if len(kids) != 2 || !kids[0].leaf || kids[0].tok.Type != token.String {
		return fmt.Errorf("%s: expected (export \"name\" (kind idx))", f.pos())
	}
	desc := kids[1]
	if desc.leaf || len(desc.kids) != 2 {
		return fmt.Errorf("%s: expected (kind idx) export desc", desc.pos())
	}

	e := ast.Export{Name: decodeString(kids[0].tok.Value)}
	target := desc.kids[1]
	switch desc.head() {
	case "func":
		e.Kind = ast.ExportFunc
		idx, err := p.funcIndex(target)
		if err != nil {
			return err
		}
		e.Index = idx
	case "memory":
		e.Kind = ast.ExportMemory
		idx, err := parseU32(target)
		if err != nil {
			return err
		}
		e.Index = idx
	case "global":
		e.Kind = ast.ExportGlobal
		idx, err := p.globalIndex(target)
		if err != nil {
			return err
		}
		e.Index = idx
	default:
		return fmt.Errorf("%s: unsupported export kind %q", desc.pos(), desc.head())
	}
	p.mod.Exports = append(p.mod.Exports, e)
	return nil
}

func (p *moduleParser) parseData(f *node) error {
	kids := f.kids[1:]
	if len(kids) < 1 {
		return fmt.Errorf("%s: expected (data (i32.const n) \"...\")", f.pos())
	}
	off := kids[0]
	if off.head() != "i32.const" || len(off.kids) != 2 {
		return fmt.Errorf("%s: data offset must be (i32.const n)", off.pos())
	}
	v, err := parseI32(off.kids[1])
	if err != nil {
		return err
	}

	var bytes []byte
	for _, k := range kids[1:] {
		if !k.leaf || k.tok.Type != token.String {
			return fmt.Errorf("%s: data segment expects string literals", k.pos())
		}
		bytes = append(bytes, DecodeStringLiteral(k.tok.Value)...)
	}
	p.mod.Datas = append(p.mod.Datas, ast.Data{Offset: v, Bytes: bytes})
	return nil
}

// parseTypeUse resolves (type $t)? (param ...)* (result ...)* into a type
// index, interning inline signatures.
func (p *moduleParser) parseTypeUse(kids []*node) (uint32, []*node, error) {
	if len(kids) > 0 && kids[0].head() == "type" {
		t := kids[0]
		if len(t.kids) != 2 || !t.kids[1].leaf {
			return 0, nil, fmt.Errorf("%s: expected (type $id)", t.pos())
		}
		ref := t.kids[1]
		if ref.tok.Type == token.Ident {
			idx, ok := p.types[ref.tok.Value]
			if !ok {
				return 0, nil, fmt.Errorf("%s: unknown type %s", ref.pos(), ref.tok.Value)
			}
			return idx, kids[1:], nil
		}
		idx, err := parseU32(ref)
		if err != nil {
			return 0, nil, err
		}
		return idx, kids[1:], nil
	}
	ft, rest, err := p.parseSignature(kids)
	if err != nil {
		return 0, nil, err
	}
	return p.internType(ft), rest, nil
}

// parseSignature consumes (param ...)* (result ...)* clauses.
func (p *moduleParser) parseSignature(kids []*node) (ast.FuncType, []*node, error) {
	ft := ast.FuncType{}
	for len(kids) > 0 && kids[0].head() == "param" {
		types, _, err := parseValClause(kids[0])
		if err != nil {
			return ft, nil, err
		}
		ft.Params = append(ft.Params, types...)
		kids = kids[1:]
	}
	for len(kids) > 0 && kids[0].head() == "result" {
		types, _, err := parseValClause(kids[0])
		if err != nil {
			return ft, nil, err
		}
		ft.Results = append(ft.Results, types...)
		kids = kids[1:]
	}
	return ft, kids, nil
}

// parseValClause parses (param $id? i32...) / (result i32...) / (local ...).
// A named clause declares exactly one value.
func parseValClause(n *node) ([]ast.ValType, []string, error) {
	kids := n.kids[1:]
	if len(kids) > 0 && kids[0].leaf && kids[0].tok.Type == token.Ident {
		if len(kids) != 2 {
			return nil, nil, fmt.Errorf("%s: named %s declares exactly one value", n.pos(), n.head())
		}
		vt, err := parseValType(kids[1])
		if err != nil {
			return nil, nil, err
		}
		return []ast.ValType{vt}, []string{kids[0].tok.Value}, nil
	}
	var types []ast.ValType
	var names []string
	for _, k := range kids {
		vt, err := parseValType(k)
		if err != nil {
			return nil, nil, err
		}
		types = append(types, vt)
		names = append(names, "")
	}
	return types, names, nil
}

func parseValType(n *node) (ast.ValType, error) {
	if !n.leaf || n.tok.Value != "i32" {
		return 0, fmt.Errorf("%s: unsupported value type %s", n.pos(), n.tok)
	}
	return ast.I32, nil
}

func (p *moduleParser) internType(ft ast.FuncType) uint32 {
	for i, t := range p.mod.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	p.mod.Types = append(p.mod.Types, ft)
	return uint32(len(p.mod.Types) - 1)
}

func (p *moduleParser) funcIndex(n *node) (uint32, error) {
	if n.leaf && n.tok.Type == token.Ident {
		idx, ok := p.funcs[n.tok.Value]
		if !ok {
			return 0, fmt.Errorf("%s: unknown func %s", n.pos(), n.tok.Value)
		}
		return idx, nil
	}
	return parseU32(n)
}

func (p *moduleParser) globalIndex(n *node) (uint32, error) {
	if n.leaf && n.tok.Type == token.Ident {
		idx, ok := p.globals[n.tok.Value]
		if !ok {
			return 0, fmt.Errorf("%s: unknown global %s", n.pos(), n.tok.Value)
		}
		return idx, nil
	}
	return parseU32(n)
}
