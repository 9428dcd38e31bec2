package encoder

import (
	"bytes"
	"fmt"

	"github.com/wippyai/wacli/wasm"
	"github.com/wippyai/wacli/wat/internal/ast"
)

// Encode serializes a parsed module to the binary format.
func Encode(m *ast.Module) ([]byte, error) {
	var out bytes.Buffer
	out.Write(wasm.Magic)
	out.Write(wasm.CoreVersion)

	writeSection(&out, wasm.SectionType, encodeTypes(m))
	if len(m.Imports) > 0 {
		writeSection(&out, wasm.SectionImport, encodeImports(m))
	}
	if len(m.Funcs) > 0 {
		writeSection(&out, wasm.SectionFunction, encodeFuncDecls(m))
	}
	if len(m.Memories) > 0 {
		writeSection(&out, wasm.SectionMemory, encodeMemories(m))
	}
	if len(m.Globals) > 0 {
		writeSection(&out, wasm.SectionGlobal, encodeGlobals(m))
	}
	if len(m.Exports) > 0 {
		writeSection(&out, wasm.SectionExport, encodeExports(m))
	}
	if len(m.Funcs) > 0 {
		code, err := encodeCode(m)
		if err != nil {
			return nil, err
		}
		writeSection(&out, wasm.SectionCode, code)
	}
	if len(m.Datas) > 0 {
		writeSection(&out, wasm.SectionData, encodeDatas(m))
	}
	return out.Bytes(), nil
}

func writeSection(out *bytes.Buffer, id wasm.SectionID, contents []byte) {
	out.WriteByte(byte(id))
	wasm.WriteLEB128u(out, uint32(len(contents)))
	out.Write(contents)
}

func writeName(buf *bytes.Buffer, name string) {
	wasm.WriteLEB128u(buf, uint32(len(name)))
	buf.WriteString(name)
}

func encodeTypes(m *ast.Module) []byte {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(m.Types)))
	for _, t := range m.Types {
		buf.WriteByte(0x60)
		wasm.WriteLEB128u(&buf, uint32(len(t.Params)))
		for _, p := range t.Params {
			buf.WriteByte(byte(p))
		}
		wasm.WriteLEB128u(&buf, uint32(len(t.Results)))
		for _, r := range t.Results {
			buf.WriteByte(byte(r))
		}
	}
	return buf.Bytes()
}

func encodeImports(m *ast.Module) []byte {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		writeName(&buf, imp.Module)
		writeName(&buf, imp.Name)
		buf.WriteByte(byte(wasm.ExternFunc))
		wasm.WriteLEB128u(&buf, imp.Type)
	}
	return buf.Bytes()
}

func encodeFuncDecls(m *ast.Module) []byte {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(m.Funcs)))
	for _, f := range m.Funcs {
		wasm.WriteLEB128u(&buf, f.Type)
	}
	return buf.Bytes()
}

func encodeMemories(m *ast.Module) []byte {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(m.Memories)))
	for _, mem := range m.Memories {
		if mem.HasMax {
			buf.WriteByte(0x01)
			wasm.WriteLEB128u(&buf, mem.Min)
			wasm.WriteLEB128u(&buf, mem.Max)
		} else {
			buf.WriteByte(0x00)
			wasm.WriteLEB128u(&buf, mem.Min)
		}
	}
	return buf.Bytes()
}

func encodeGlobals(m *ast.Module) []byte {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(m.Globals)))
	for _, g := range m.Globals {
		buf.WriteByte(byte(ast.I32))
		if g.Mutable {
			buf.WriteByte(0x01)
		} else {
			buf.WriteByte(0x00)
		}
		buf.WriteByte(byte(ast.OpI32Const))
		wasm.WriteLEB128s(&buf, g.Init)
		buf.WriteByte(byte(ast.OpEnd))
	}
	return buf.Bytes()
}

func encodeExports(m *ast.Module) []byte {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(m.Exports)))
	for _, e := range m.Exports {
		writeName(&buf, e.Name)
		buf.WriteByte(byte(e.Kind))
		wasm.WriteLEB128u(&buf, e.Index)
	}
	return buf.Bytes()
}

func encodeCode(m *ast.Module) ([]byte, error) {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(m.Funcs)))
	for i, f := range m.Funcs {
		var body bytes.Buffer
		// locals are all i32, so at most one run-length group
		if len(f.Locals) == 0 {
			wasm.WriteLEB128u(&body, 0)
		} else {
			wasm.WriteLEB128u(&body, 1)
			wasm.WriteLEB128u(&body, uint32(len(f.Locals)))
			body.WriteByte(byte(ast.I32))
		}
		for _, instr := range f.Body {
			if err := encodeInstr(&body, instr); err != nil {
				return nil, fmt.Errorf("func %d: %w", i, err)
			}
		}
		body.WriteByte(byte(ast.OpEnd))

		wasm.WriteLEB128u(&buf, uint32(body.Len()))
		buf.Write(body.Bytes())
	}
	return buf.Bytes(), nil
}

func encodeDatas(m *ast.Module) []byte {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(m.Datas)))
	for _, d := range m.Datas {
		buf.WriteByte(0x00) // active segment in memory 0
		buf.WriteByte(byte(ast.OpI32Const))
		wasm.WriteLEB128s(&buf, d.Offset)
		buf.WriteByte(byte(ast.OpEnd))
		wasm.WriteLEB128u(&buf, uint32(len(d.Bytes)))
		buf.Write(d.Bytes)
	}
	return buf.Bytes()
}

func encodeInstr(buf *bytes.Buffer, instr ast.Instr) error {
	buf.WriteByte(byte(instr.Op))
	switch instr.Op {
	case ast.OpBlock, ast.OpLoop, ast.OpIf:
		buf.WriteByte(instr.Block)
	case ast.OpBr, ast.OpBrIf, ast.OpCall,
		ast.OpLocalGet, ast.OpLocalSet, ast.OpLocalTee,
		ast.OpGlobalGet, ast.OpGlobalSet:
		wasm.WriteLEB128u(buf, instr.Index)
	case ast.OpI32Const:
		wasm.WriteLEB128s(buf, instr.Const)
	case ast.OpI32Load, ast.OpI32Load8U, ast.OpI32Store, ast.OpI32Store8:
		wasm.WriteLEB128u(buf, instr.Align)
		wasm.WriteLEB128u(buf, instr.Offset)
	case ast.OpUnreachable, ast.OpNop, ast.OpElse, ast.OpEnd, ast.OpReturn,
		ast.OpDrop, ast.OpSelect,
		ast.OpI32Eqz, ast.OpI32Eq, ast.OpI32Ne,
		ast.OpI32LtS, ast.OpI32LtU, ast.OpI32GtS, ast.OpI32GtU,
		ast.OpI32LeU, ast.OpI32GeU,
		ast.OpI32Add, ast.OpI32Sub, ast.OpI32Mul,
		ast.OpI32And, ast.OpI32Or, ast.OpI32Xor,
		ast.OpI32Shl, ast.OpI32ShrU:
	default:
		return fmt.Errorf("unencodable opcode 0x%02x", byte(instr.Op))
	}
	return nil
}
