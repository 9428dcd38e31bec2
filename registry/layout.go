package registry

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

// Layout is the canonical ABI footprint of one type.
type Layout struct {
	Size  uint32
	Align uint32
}

// Field is one record field with its resolved byte offset.
type Field struct {
	Name   string
	Type   wit.Type
	Offset uint32
}

// RecordLayout is the single source of truth for one record shape. The
// body builders store fields at these offsets and the WIT synthesis
// renders the same fields in the same order, so the two views cannot
// drift apart.
type RecordLayout struct {
	Name   string
	Size   uint32
	Align  uint32
	Fields []Field

	def *wit.TypeDef
}

// Offset returns a field's byte offset. An unknown name is a programming
// error in the generator, not an input error.
func (r *RecordLayout) Offset(name string) uint32 {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Offset
		}
	}
	panic(fmt.Sprintf("record %s has no field %s", r.Name, name))
}

// Layouts holds every record shape the generated module writes, plus the
// derived geometry of the run result slot.
type Layouts struct {
	ArgSchema     *RecordLayout
	CommandSchema *RecordLayout
	AppMeta       *RecordLayout

	// run returns result<_, run-error> through an out pointer. The slot
	// is the canonical result: its own discriminant at 0, the error
	// variant discriminant at ErrorCaseOffset, the error payload string
	// at ErrorPayloadOffset.
	RunResultSize      uint32
	ErrorCaseOffset    uint32
	ErrorPayloadOffset uint32

	runErrorDef *wit.TypeDef
	calc        *calculator
}

// Optional-string geometry relative to the field offset: a one-byte
// presence tag, then the string payload aligned to its own alignment.
// Derived from the calculator so the emitted stores track the option
// layout rule.
var (
	OptionPtrOffset = optionPayloadOffset()
	OptionLenOffset = optionPayloadOffset() + 4
)

func optionPayloadOffset() uint32 {
	inner := newCalculator().layout(wit.String{})
	return alignTo(1, inner.Align)
}

func optString() wit.Type {
	return &wit.TypeDef{Kind: &wit.Option{Type: wit.String{}}}
}

func listOf(t wit.Type) wit.Type {
	return &wit.TypeDef{Kind: &wit.List{Type: t}}
}

// NewLayouts builds the schema table all code generation derives from.
func NewLayouts() *Layouts {
	calc := newCalculator()

	argSchema := calc.record("arg-schema", []wit.Field{
		{Name: "name", Type: wit.String{}},
		{Name: "short", Type: optString()},
		{Name: "long", Type: optString()},
		{Name: "help", Type: optString()},
		{Name: "required", Type: wit.Bool{}},
		{Name: "default-value", Type: optString()},
		{Name: "env", Type: optString()},
		{Name: "value-name", Type: optString()},
		{Name: "takes-value", Type: wit.Bool{}},
		{Name: "multiple", Type: wit.Bool{}},
		{Name: "value-type", Type: wit.String{}},
		{Name: "possible-values", Type: listOf(wit.String{})},
		{Name: "conflicts-with", Type: listOf(wit.String{})},
		{Name: "requires", Type: listOf(wit.String{})},
		{Name: "hidden", Type: wit.Bool{}},
	})

	commandSchema := calc.record("command-schema", []wit.Field{
		{Name: "name", Type: wit.String{}},
		{Name: "summary", Type: wit.String{}},
		{Name: "usage", Type: wit.String{}},
		{Name: "aliases", Type: listOf(wit.String{})},
		{Name: "version", Type: wit.String{}},
		{Name: "hidden", Type: wit.Bool{}},
		{Name: "description", Type: optString()},
		{Name: "examples", Type: listOf(wit.String{})},
		{Name: "args", Type: listOf(argSchema.def)},
	})

	appMeta := calc.record("app-meta", []wit.Field{
		{Name: "name", Type: wit.String{}},
		{Name: "version", Type: wit.String{}},
		{Name: "description", Type: wit.String{}},
	})

	runError := &wit.TypeDef{Kind: &wit.Variant{Cases: []wit.Case{
		{Name: "unknown-command", Type: wit.String{}},
		{Name: "failed", Type: wit.String{}},
	}}}
	result := &wit.TypeDef{Kind: &wit.Result{Err: runError}}

	resultLayout := calc.layout(result)
	errLayout := calc.layout(runError)
	errCaseOffset := alignTo(1, errLayout.Align)
	errPayloadOffset := errCaseOffset + alignTo(1, 4)

	return &Layouts{
		ArgSchema:          argSchema,
		CommandSchema:      commandSchema,
		AppMeta:            appMeta,
		RunResultSize:      resultLayout.Size,
		ErrorCaseOffset:    errCaseOffset,
		ErrorPayloadOffset: errPayloadOffset,
		runErrorDef:        runError,
		calc:               calc,
	}
}

func alignTo(offset, align uint32) uint32 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// calculator computes canonical ABI sizes and alignments over wit types.
type calculator struct {
	cache map[*wit.TypeDef]Layout
}

func newCalculator() *calculator {
	return &calculator{cache: map[*wit.TypeDef]Layout{}}
}

func (c *calculator) layout(t wit.Type) Layout {
	switch typ := t.(type) {
	case wit.Bool, wit.U8, wit.S8:
		return Layout{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Layout{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.Char:
		return Layout{Size: 4, Align: 4}
	case wit.U64, wit.S64:
		return Layout{Size: 8, Align: 8}
	case wit.String:
		return Layout{Size: 8, Align: 4} // [ptr: u32, len: u32]
	case *wit.TypeDef:
		return c.typeDef(typ)
	default:
		return Layout{Size: 0, Align: 1}
	}
}

func (c *calculator) typeDef(t *wit.TypeDef) Layout {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var l Layout
	switch kind := t.Kind.(type) {
	case *wit.Record:
		l = c.recordLayout(kind)
	case *wit.List:
		l = Layout{Size: 8, Align: 4}
	case *wit.Option:
		inner := c.layout(kind.Type)
		payload := alignTo(1, inner.Align)
		l = Layout{Size: alignTo(payload+inner.Size, inner.Align), Align: maxU32(inner.Align, 1)}
	case *wit.Variant:
		l = c.variantLayout(kind)
	case *wit.Result:
		l = c.resultLayout(kind)
	case wit.Type:
		l = c.layout(kind)
	default:
		l = Layout{Size: 0, Align: 1}
	}

	c.cache[t] = l
	return l
}

func (c *calculator) recordLayout(r *wit.Record) Layout {
	if len(r.Fields) == 0 {
		return Layout{Size: 0, Align: 1}
	}
	maxAlign := uint32(1)
	offset := uint32(0)
	for _, f := range r.Fields {
		fl := c.layout(f.Type)
		offset = alignTo(offset, fl.Align)
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
		offset += fl.Size
	}
	return Layout{Size: alignTo(offset, maxAlign), Align: maxAlign}
}

func (c *calculator) variantLayout(v *wit.Variant) Layout {
	// every variant here has at most 255 cases, so a one-byte discriminant
	maxAlign := uint32(1)
	maxSize := uint32(0)
	for _, cs := range v.Cases {
		if cs.Type == nil {
			continue
		}
		cl := c.layout(cs.Type)
		if cl.Align > maxAlign {
			maxAlign = cl.Align
		}
		if cl.Size > maxSize {
			maxSize = cl.Size
		}
	}
	payload := alignTo(1, maxAlign)
	return Layout{Size: alignTo(payload+maxSize, maxAlign), Align: maxAlign}
}

func (c *calculator) resultLayout(r *wit.Result) Layout {
	maxAlign := uint32(1)
	maxSize := uint32(0)
	for _, side := range []wit.Type{r.OK, r.Err} {
		if side == nil {
			continue
		}
		sl := c.layout(side)
		if sl.Align > maxAlign {
			maxAlign = sl.Align
		}
		if sl.Size > maxSize {
			maxSize = sl.Size
		}
	}
	payload := alignTo(1, maxAlign)
	return Layout{Size: alignTo(payload+maxSize, maxAlign), Align: maxAlign}
}

// record computes field offsets and wraps them with the wit definition.
func (c *calculator) record(name string, fields []wit.Field) *RecordLayout {
	def := &wit.TypeDef{Kind: &wit.Record{Fields: fields}}
	rl := &RecordLayout{Name: name, def: def}

	maxAlign := uint32(1)
	offset := uint32(0)
	for _, f := range fields {
		fl := c.layout(f.Type)
		offset = alignTo(offset, fl.Align)
		rl.Fields = append(rl.Fields, Field{Name: f.Name, Type: f.Type, Offset: offset})
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
		offset += fl.Size
	}
	rl.Size = alignTo(offset, maxAlign)
	rl.Align = maxAlign
	c.cache[def] = Layout{Size: rl.Size, Align: rl.Align}
	return rl
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
