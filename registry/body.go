package registry

import (
	"fmt"

	"github.com/wippyai/wacli/metadata"
)

// The body builders translate schemas into typed instruction streams.
// Every offset comes from the layout table and every string location from
// the interned table; nothing here concatenates WAT by hand except the
// final Render call in the emitter.

// buildAllocBody emits the bump allocator: return the heap cursor,
// advance it by size. No bound check; the module traps on memory access
// past the arena rather than failing the allocation.
func buildAllocBody() *Asm {
	a := &Asm{}
	a.GlobalGet("heap")
	a.LocalSet("ptr")
	a.LocalGet("ptr")
	a.LocalGet("size")
	a.Add()
	a.GlobalSet("heap")
	a.LocalGet("ptr")
	return a
}

// buildGetAppMetaBody allocates and fills the app-meta record.
func buildGetAppMetaBody(l *Layouts, t *StringTable, app metadata.AppMeta) *Asm {
	a := &Asm{}
	a.alloc(l.AppMeta.Size, "ret")
	a.storeString("ret", l.AppMeta.Offset("name"), t.Lookup(app.Name))
	a.storeString("ret", l.AppMeta.Offset("version"), t.Lookup(app.Version))
	a.storeString("ret", l.AppMeta.Offset("description"), t.Lookup(app.Description))
	a.LocalGet("ret")
	return a
}

// buildListSchemasBody allocates the (ptr, count) result pair, the record
// array, and every secondary list, writing each field at its computed
// offset.
func buildListSchemasBody(l *Layouts, t *StringTable, cmds []metadata.CommandSchema) *Asm {
	a := &Asm{}
	stride := l.CommandSchema.Size
	argStride := l.ArgSchema.Size

	a.Comment("result pair (ptr, count)")
	a.alloc(8, "ret")

	if len(cmds) == 0 {
		a.storeConst("ret", 0, 0)
		a.storeConst("ret", 4, 0)
		a.LocalGet("ret")
		return a
	}

	a.Comment(fmt.Sprintf("%d command records, stride %d", len(cmds), stride))
	a.alloc(stride*uint32(len(cmds)), "arr")
	a.storeLocal("ret", 0, "arr")
	a.storeConst("ret", 4, int32(len(cmds)))

	for i, c := range cmds {
		base := uint32(i) * stride
		a.Comment("command " + c.Name)
		a.storeString("arr", base+l.CommandSchema.Offset("name"), t.Lookup(c.Name))
		a.storeString("arr", base+l.CommandSchema.Offset("summary"), t.Lookup(c.Summary))
		a.storeString("arr", base+l.CommandSchema.Offset("usage"), t.Lookup(c.Usage))
		buildStringList(a, t, "arr", base+l.CommandSchema.Offset("aliases"), c.Aliases, "sub")
		a.storeString("arr", base+l.CommandSchema.Offset("version"), t.Lookup(c.Version))
		a.storeBool("arr", base+l.CommandSchema.Offset("hidden"), c.Hidden)
		storeOptString(a, t, "arr", base+l.CommandSchema.Offset("description"), c.Description)
		buildStringList(a, t, "arr", base+l.CommandSchema.Offset("examples"), c.Examples, "sub")

		argsOff := base + l.CommandSchema.Offset("args")
		if len(c.Args) == 0 {
			a.storeConst("arr", argsOff, 0)
			a.storeConst("arr", argsOff+4, 0)
			continue
		}
		a.alloc(argStride*uint32(len(c.Args)), "sub")
		for j, arg := range c.Args {
			ab := uint32(j) * argStride
			a.storeString("sub", ab+l.ArgSchema.Offset("name"), t.Lookup(arg.Name))
			storeOptString(a, t, "sub", ab+l.ArgSchema.Offset("short"), arg.Short)
			storeOptString(a, t, "sub", ab+l.ArgSchema.Offset("long"), arg.Long)
			storeOptString(a, t, "sub", ab+l.ArgSchema.Offset("help"), arg.Help)
			a.storeBool("sub", ab+l.ArgSchema.Offset("required"), arg.Required)
			storeOptString(a, t, "sub", ab+l.ArgSchema.Offset("default-value"), arg.DefaultValue)
			storeOptString(a, t, "sub", ab+l.ArgSchema.Offset("env"), arg.Env)
			storeOptString(a, t, "sub", ab+l.ArgSchema.Offset("value-name"), arg.ValueName)
			a.storeBool("sub", ab+l.ArgSchema.Offset("takes-value"), arg.TakesValue)
			a.storeBool("sub", ab+l.ArgSchema.Offset("multiple"), arg.Multiple)
			a.storeString("sub", ab+l.ArgSchema.Offset("value-type"), t.Lookup(arg.ValueType))
			buildStringList(a, t, "sub", ab+l.ArgSchema.Offset("possible-values"), arg.PossibleValues, "sub2")
			buildStringList(a, t, "sub", ab+l.ArgSchema.Offset("conflicts-with"), arg.ConflictsWith, "sub2")
			buildStringList(a, t, "sub", ab+l.ArgSchema.Offset("requires"), arg.Requires, "sub2")
			a.storeBool("sub", ab+l.ArgSchema.Offset("hidden"), arg.Hidden)
		}
		a.storeLocal("arr", argsOff, "sub")
		a.storeConst("arr", argsOff+4, int32(len(c.Args)))
	}

	a.LocalGet("ret")
	return a
}

// buildStringList allocates a list of interned strings into the scratch
// local and stores its (ptr, len) at base+off. Empty lists store zeros
// and allocate nothing.
func buildStringList(a *Asm, t *StringTable, base string, off uint32, items []string, scratch string) {
	if len(items) == 0 {
		a.storeConst(base, off, 0)
		a.storeConst(base, off+4, 0)
		return
	}
	a.alloc(8*uint32(len(items)), scratch)
	for i, s := range items {
		a.storeString(scratch, uint32(i)*8, t.Lookup(s))
	}
	a.storeLocal(base, off, scratch)
	a.storeConst(base, off+4, int32(len(items)))
}

func storeOptString(a *Asm, t *StringTable, base string, off uint32, s *string) {
	if s == nil {
		a.storeOption(base, off, Loc{}, false)
		return
	}
	a.storeOption(base, off, t.Lookup(*s), true)
}

// buildRunBody emits the dispatch chain: for each command its canonical
// name, then each of its aliases, in discovery order, first match wins.
// The fallthrough fills the unknown-command case with the caller's own
// name pointer and length.
func buildRunBody(l *Layouts, t *StringTable, cmds []metadata.CommandSchema) *Asm {
	a := &Asm{}
	for i, c := range cmds {
		names := append([]string{c.Name}, c.Aliases...)
		for _, nm := range names {
			loc := t.Lookup(nm)
			a.Comment(fmt.Sprintf("%q -> command %d", nm, i))
			a.LocalGet("name-ptr")
			a.LocalGet("name-len")
			a.I32Const(int32(loc.Offset))
			a.I32Const(int32(loc.Len))
			a.Call("match-name")
			a.If()
			a.alloc(l.RunResultSize, "slot")
			a.LocalGet("argv-ptr")
			a.LocalGet("argv-len")
			a.LocalGet("slot")
			a.Call(runImportSym(i))
			a.LocalGet("slot")
			a.Return()
			a.End()
		}
	}

	a.Comment("unknown command")
	a.alloc(l.RunResultSize, "slot")
	a.storeConst("slot", 0, 1)
	a.storeConst("slot", l.ErrorCaseOffset, 0)
	a.storeLocal("slot", l.ErrorPayloadOffset, "name-ptr")
	a.storeLocal("slot", l.ErrorPayloadOffset+4, "name-len")
	a.LocalGet("slot")
	return a
}

// runImportSym is the local symbol bound to command i's imported run.
func runImportSym(i int) string {
	return fmt.Sprintf("cmd%d-run", i)
}

// metaImportSym is the local symbol bound to command i's imported
// get-meta.
func metaImportSym(i int) string {
	return fmt.Sprintf("cmd%d-meta", i)
}
