package wat

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wippyai/wacli/wasm"
)

func TestCompileConstFunc(t *testing.T) {
	bin, err := Compile(`(module (func (export "f") (result i32) i32.const 42))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x05, 0x01, 0x01, 'f', 0x00, 0x00,
		0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b,
	}
	if !bytes.Equal(bin, want) {
		t.Errorf("binary mismatch:\n got %x\nwant %x", bin, want)
	}
}

func TestCompileRegistryShape(t *testing.T) {
	src := `(module $registry
	  (import "greet-command" "run" (func $cmd0-run (param i32 i32 i32)))
	  (import "greet-command" "get-meta" (func $cmd0-meta (param i32)))
	  (memory (export "memory") 1)
	  (global $heap (mut i32) (i32.const 1024))
	  (func $alloc (param $size i32) (result i32) (local $ptr i32)
	    global.get $heap
	    local.set $ptr
	    (global.set $heap (i32.add (local.get $ptr) (local.get $size)))
	    local.get $ptr
	  )
	  (func $match-name (param $ptr i32) (param $len i32) (param $off i32) (param $want-len i32) (result i32)
	    (local $i i32)
	    (if (i32.ne (local.get $len) (local.get $want-len))
	      (then (return (i32.const 0))))
	    (block $done
	      (loop $next
	        (br_if $done (i32.ge_u (local.get $i) (local.get $len)))
	        (if (i32.ne
	              (i32.load8_u (i32.add (local.get $ptr) (local.get $i)))
	              (i32.load8_u (i32.add (local.get $off) (local.get $i))))
	          (then (return (i32.const 0))))
	        (local.set $i (i32.add (local.get $i) (i32.const 1)))
	        (br $next)
	      )
	    )
	    (i32.const 1)
	  )
	  (func (export "run") (param i32 i32 i32 i32) (result i32) (local $slot i32)
	    (local.set $slot (call $alloc (i32.const 16)))
	    (call $cmd0-run (local.get 2) (local.get 3) (local.get $slot))
	    (i32.store offset=0 (local.get $slot) (i32.const 0))
	    (local.get $slot)
	  )
	  (data (i32.const 0) "greet\00app\5cname")
	)`

	bin, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	m, err := wasm.DecodeModule(bin)
	if err != nil {
		t.Fatalf("DecodeModule: %v", err)
	}

	imports, err := wasm.DecodeImports(m.Section(wasm.SectionImport).Contents)
	if err != nil {
		t.Fatalf("DecodeImports: %v", err)
	}
	if len(imports) != 2 || imports[0].Module != "greet-command" || imports[1].Name != "get-meta" {
		t.Errorf("imports = %+v", imports)
	}

	exports, err := wasm.DecodeExports(m.Section(wasm.SectionExport).Contents)
	if err != nil {
		t.Fatalf("DecodeExports: %v", err)
	}
	byName := map[string]wasm.Export{}
	for _, e := range exports {
		byName[e.Name] = e
	}
	if e, ok := byName["memory"]; !ok || e.Kind != wasm.ExternMemory {
		t.Errorf("memory export = %+v", byName["memory"])
	}
	// imported funcs occupy indices 0 and 1, defined funcs follow
	if e, ok := byName["run"]; !ok || e.Kind != wasm.ExternFunc || e.Index != 4 {
		t.Errorf("run export = %+v", e)
	}

	if m.Section(wasm.SectionGlobal) == nil {
		t.Error("missing global section")
	}
	data := m.Section(wasm.SectionData)
	if data == nil {
		t.Fatal("missing data section")
	}
	if !bytes.Contains(data.Contents, []byte("greet\x00app\\name")) {
		t.Errorf("data contents = %x", data.Contents)
	}
}

func TestCompileHexEscapes(t *testing.T) {
	bin, err := Compile(`(module (memory 1) (data (i32.const 4) "\01\00\00\00hi"))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m, err := wasm.DecodeModule(bin)
	if err != nil {
		t.Fatalf("DecodeModule: %v", err)
	}
	data := m.Section(wasm.SectionData)
	if !bytes.Contains(data.Contents, []byte{0x01, 0x00, 0x00, 0x00, 'h', 'i'}) {
		t.Errorf("data contents = %x", data.Contents)
	}
}

func TestCompileDataSegmentEncoding(t *testing.T) {
	bin, err := Compile(`(module (memory 1) (data (i32.const 4) "hi"))`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m, err := wasm.DecodeModule(bin)
	if err != nil {
		t.Fatalf("DecodeModule: %v", err)
	}
	data := m.Section(wasm.SectionData)
	if data == nil {
		t.Fatal("missing data section")
	}
	// count, active flag, i32.const 4 init expr, end, byte vector
	want := []byte{0x01, 0x00, 0x41, 0x04, 0x0b, 0x02, 'h', 'i'}
	if !bytes.Equal(data.Contents, want) {
		t.Errorf("data section = %x, want %x", data.Contents, want)
	}
}

func TestCompileComments(t *testing.T) {
	src := `(module
	  ;; line comment
	  (; block (; nested ;) comment ;)
	  (func (result i32) i32.const 7)
	)`
	if _, err := Compile(src); err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unclosed paren", `(module (func`, "unclosed"},
		{"unknown instruction", `(module (func f64.sqrt))`, "unsupported"},
		{"unknown local", `(module (func (local.get $nope)))`, "unknown local"},
		{"unknown func", `(module (func (call $nope)))`, "unknown func"},
		{"unknown label", `(module (func (br $nope)))`, "unknown label"},
		{"duplicate func id", `(module (func $f) (func $f))`, "duplicate"},
		{"f64 type", `(module (func (param f64)))`, "unsupported value type"},
		{"if without then", `(module (func (if (i32.const 1) (i32.const 2))))`, "then"},
		{"unterminated string", `(module (data (i32.const 0) "oops`, "unterminated"},
		{"global import", `(module (import "a" "b" (global i32)))`, "function imports"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}
