package ast

// The AST keeps only what the encoder needs: resolved indices everywhere,
// names already substituted by the parser.

// ValType is a core value type byte. Only i32 survives the trim; the
// field stays a byte so encoding is a straight copy.
type ValType byte

const I32 ValType = 0x7f

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports signature equality.
func (t FuncType) Equal(o FuncType) bool {
	if len(t.Params) != len(o.Params) || len(t.Results) != len(o.Results) {
		return false
	}
	for i := range t.Params {
		if t.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range t.Results {
		if t.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Import is an imported function. Only function imports are supported.
type Import struct {
	Module string
	Name   string
	Type   uint32 // type index
}

// Func is a defined function.
type Func struct {
	Type   uint32 // type index
	Locals []ValType
	Body   []Instr
}

// Global is a module global with a constant i32 initializer.
type Global struct {
	Mutable bool
	Init    int32
}

// ExportKind mirrors the binary descriptor tag.
type ExportKind byte

const (
	ExportFunc   ExportKind = 0
	ExportMemory ExportKind = 2
	ExportGlobal ExportKind = 3
)

// Export is one module export.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// Memory is a memory definition with limits in pages.
type Memory struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Data is an active data segment at a constant i32 offset.
type Data struct {
	Offset int32
	Bytes  []byte
}

// Module is a parsed module ready for encoding.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []Func
	Memories []Memory
	Globals  []Global
	Exports  []Export
	Datas    []Data
}

// Opcode is a core instruction opcode byte.
type Opcode byte

// The opcodes the registry codegen emits.
const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0b
	OpBr          Opcode = 0x0c
	OpBrIf        Opcode = 0x0d
	OpReturn      Opcode = 0x0f
	OpCall        Opcode = 0x10
	OpDrop        Opcode = 0x1a
	OpSelect      Opcode = 0x1b
	OpLocalGet    Opcode = 0x20
	OpLocalSet    Opcode = 0x21
	OpLocalTee    Opcode = 0x22
	OpGlobalGet   Opcode = 0x23
	OpGlobalSet   Opcode = 0x24
	OpI32Load     Opcode = 0x28
	OpI32Load8U   Opcode = 0x2d
	OpI32Store    Opcode = 0x36
	OpI32Store8   Opcode = 0x3a
	OpI32Const    Opcode = 0x41
	OpI32Eqz      Opcode = 0x45
	OpI32Eq       Opcode = 0x46
	OpI32Ne       Opcode = 0x47
	OpI32LtS      Opcode = 0x48
	OpI32LtU      Opcode = 0x49
	OpI32GtS      Opcode = 0x4a
	OpI32GtU      Opcode = 0x4b
	OpI32LeU      Opcode = 0x4d
	OpI32GeU      Opcode = 0x4f
	OpI32Add      Opcode = 0x6a
	OpI32Sub      Opcode = 0x6b
	OpI32Mul      Opcode = 0x6c
	OpI32And      Opcode = 0x71
	OpI32Or       Opcode = 0x72
	OpI32Xor      Opcode = 0x73
	OpI32Shl      Opcode = 0x74
	OpI32ShrU     Opcode = 0x76
)

// BlockEmpty is the empty block type byte.
const BlockEmpty byte = 0x40

// Instr is one instruction with its resolved immediate.
type Instr struct {
	Op Opcode

	// Index is the immediate of call, local.*, global.*, br, br_if.
	Index uint32

	// Const is the i32.const immediate.
	Const int32

	// Align and Offset are the memarg of loads and stores.
	Align  uint32
	Offset uint32

	// Block is the block type byte of block/loop/if.
	Block byte
}
