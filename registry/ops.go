package registry

import (
	"fmt"
	"strings"
)

// OpKind enumerates the instruction stream the body builders emit. The
// stream is typed so layout encoding can be tested without rendering any
// template text.
type OpKind int

const (
	OpI32Const OpKind = iota
	OpLocalGet
	OpLocalSet
	OpGlobalGet
	OpGlobalSet
	OpStore   // i32.store with static offset
	OpStore8  // i32.store8 with static offset
	OpAdd     // i32.add
	OpCall    // call by symbolic name
	OpReturn
	OpIf  // if with empty block type
	OpEnd // closes an if
	OpRaw // escape hatch: one literal line
)

// Op is one instruction. Name carries the target of local/global/call
// ops, Val the i32.const immediate, Off the store offset, Text a raw
// line.
type Op struct {
	Kind OpKind
	Name string
	Val  int32
	Off  uint32
	Text string
}

// Asm accumulates an instruction stream.
type Asm struct {
	ops []Op
}

func (a *Asm) I32Const(v int32)      { a.ops = append(a.ops, Op{Kind: OpI32Const, Val: v}) }
func (a *Asm) LocalGet(name string)  { a.ops = append(a.ops, Op{Kind: OpLocalGet, Name: name}) }
func (a *Asm) LocalSet(name string)  { a.ops = append(a.ops, Op{Kind: OpLocalSet, Name: name}) }
func (a *Asm) GlobalGet(name string) { a.ops = append(a.ops, Op{Kind: OpGlobalGet, Name: name}) }
func (a *Asm) GlobalSet(name string) { a.ops = append(a.ops, Op{Kind: OpGlobalSet, Name: name}) }
func (a *Asm) Store(offset uint32)   { a.ops = append(a.ops, Op{Kind: OpStore, Off: offset}) }
func (a *Asm) Store8(offset uint32)  { a.ops = append(a.ops, Op{Kind: OpStore8, Off: offset}) }
func (a *Asm) Add()                  { a.ops = append(a.ops, Op{Kind: OpAdd}) }
func (a *Asm) Call(fn string)        { a.ops = append(a.ops, Op{Kind: OpCall, Name: fn}) }
func (a *Asm) Return()               { a.ops = append(a.ops, Op{Kind: OpReturn}) }
func (a *Asm) If()                   { a.ops = append(a.ops, Op{Kind: OpIf}) }
func (a *Asm) End()                  { a.ops = append(a.ops, Op{Kind: OpEnd}) }
func (a *Asm) Raw(line string)       { a.ops = append(a.ops, Op{Kind: OpRaw, Text: line}) }
func (a *Asm) Comment(c string)      { a.Raw(";; " + c) }

// Ops returns the accumulated stream.
func (a *Asm) Ops() []Op {
	return a.ops
}

// Render writes the stream as flat WAT, one instruction per line, at the
// given indent depth (two spaces per level). Nested if bodies indent one
// level deeper.
func (a *Asm) Render(indent int) string {
	var b strings.Builder
	depth := indent
	for _, op := range a.ops {
		if op.Kind == OpEnd {
			depth--
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(op.line())
		b.WriteByte('\n')
		if op.Kind == OpIf {
			depth++
		}
	}
	return b.String()
}

func (op Op) line() string {
	switch op.Kind {
	case OpI32Const:
		return fmt.Sprintf("i32.const %d", op.Val)
	case OpLocalGet:
		return "local.get $" + op.Name
	case OpLocalSet:
		return "local.set $" + op.Name
	case OpGlobalGet:
		return "global.get $" + op.Name
	case OpGlobalSet:
		return "global.set $" + op.Name
	case OpStore:
		return fmt.Sprintf("i32.store offset=%d", op.Off)
	case OpStore8:
		return fmt.Sprintf("i32.store8 offset=%d", op.Off)
	case OpAdd:
		return "i32.add"
	case OpCall:
		return "call $" + op.Name
	case OpReturn:
		return "return"
	case OpIf:
		return "if"
	case OpEnd:
		return "end"
	case OpRaw:
		return op.Text
	}
	return ""
}

// Convenience sequences shared by the body builders.

// storeConst writes an i32 immediate at base+off.
func (a *Asm) storeConst(base string, off uint32, v int32) {
	a.LocalGet(base)
	a.I32Const(v)
	a.Store(off)
}

// storeLocal writes another local's value at base+off.
func (a *Asm) storeLocal(base string, off uint32, src string) {
	a.LocalGet(base)
	a.LocalGet(src)
	a.Store(off)
}

// storeByte writes a byte immediate at base+off.
func (a *Asm) storeByte(base string, off uint32, v int32) {
	a.LocalGet(base)
	a.I32Const(v)
	a.Store8(off)
}

// storeString writes an interned string's pointer and length at base+off.
func (a *Asm) storeString(base string, off uint32, loc Loc) {
	a.storeConst(base, off, int32(loc.Offset))
	a.storeConst(base, off+4, int32(loc.Len))
}

// storeOption writes a presence tag plus pointer and length. Absent
// options zero the pointer and length, never leaving them stale.
func (a *Asm) storeOption(base string, off uint32, loc Loc, present bool) {
	if present {
		a.storeByte(base, off, 1)
		a.storeConst(base, off+OptionPtrOffset, int32(loc.Offset))
		a.storeConst(base, off+OptionLenOffset, int32(loc.Len))
	} else {
		a.storeByte(base, off, 0)
		a.storeConst(base, off+OptionPtrOffset, 0)
		a.storeConst(base, off+OptionLenOffset, 0)
	}
}

// storeBool writes a canonical bool byte.
func (a *Asm) storeBool(base string, off uint32, v bool) {
	if v {
		a.storeByte(base, off, 1)
	} else {
		a.storeByte(base, off, 0)
	}
}

// alloc emits a bump allocation of size bytes into the named local.
func (a *Asm) alloc(size uint32, dst string) {
	a.I32Const(int32(size))
	a.Call("alloc")
	a.LocalSet(dst)
}
