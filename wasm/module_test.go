package wasm

import (
	"bytes"
	"testing"
)

func emptyModule() []byte {
	out := append([]byte{}, Magic...)
	return append(out, CoreVersion...)
}

func TestPreambleDetection(t *testing.T) {
	core := emptyModule()
	comp := append(append([]byte{}, Magic...), ComponentVersion...)

	if !IsCoreModule(core) {
		t.Error("core preamble not recognized")
	}
	if IsComponent(core) {
		t.Error("core preamble misread as component")
	}
	if !IsComponent(comp) {
		t.Error("component preamble not recognized")
	}
	if IsCoreModule(comp) {
		t.Error("component preamble misread as core module")
	}
	if IsCoreModule([]byte{0x00, 0x61}) {
		t.Error("truncated preamble accepted")
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	raw := emptyModule()
	// type section: one func type () -> ()
	raw = append(raw, byte(SectionType), 0x04, 0x01, 0x60, 0x00, 0x00)
	// function section: one func of type 0
	raw = append(raw, byte(SectionFunction), 0x02, 0x01, 0x00)
	// code section: one empty body
	raw = append(raw, byte(SectionCode), 0x04, 0x01, 0x02, 0x00, 0x0b)

	m, err := DecodeModule(raw)
	if err != nil {
		t.Fatalf("DecodeModule: %v", err)
	}
	if len(m.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(m.Sections))
	}
	if m.Section(SectionFunction) == nil || m.Section(SectionData) != nil {
		t.Error("Section lookup wrong")
	}
	if got := m.Encode(); !bytes.Equal(got, raw) {
		t.Errorf("Encode() differs from input:\n got %x\nwant %x", got, raw)
	}
}

func TestDecodeModuleErrors(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		if _, err := DecodeModule([]byte{1, 2, 3, 4, 5, 6, 7, 8}); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("truncated section", func(t *testing.T) {
		raw := append(emptyModule(), byte(SectionType), 0x10, 0x01)
		if _, err := DecodeModule(raw); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("invalid section id", func(t *testing.T) {
		raw := append(emptyModule(), 0x2a, 0x00)
		if _, err := DecodeModule(raw); err == nil {
			t.Error("expected error")
		}
	})
}

func TestCustomSections(t *testing.T) {
	payload := []byte(`{"format-version":1}`)
	raw, err := AppendCustom(emptyModule(), "wacli:cli/command-metadata@1", payload)
	if err != nil {
		t.Fatalf("AppendCustom: %v", err)
	}

	m, err := DecodeModule(raw)
	if err != nil {
		t.Fatalf("DecodeModule: %v", err)
	}

	got, ok := m.FindCustom("wacli:cli/command-metadata@1")
	if !ok {
		t.Fatal("custom section not found")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}

	if _, ok := m.FindCustom("component-type:registry"); ok {
		t.Error("found custom section that was never added")
	}

	if _, err := AppendCustom([]byte{0, 1, 2}, "x", nil); err == nil {
		t.Error("AppendCustom accepted a non-module")
	}
}

func TestDecodeExports(t *testing.T) {
	contents := []byte{
		0x02,
		0x03, 'r', 'u', 'n', 0x00, 0x02,
		0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	}
	exports, err := DecodeExports(contents)
	if err != nil {
		t.Fatalf("DecodeExports: %v", err)
	}
	if len(exports) != 2 {
		t.Fatalf("exports = %d, want 2", len(exports))
	}
	if exports[0].Name != "run" || exports[0].Kind != ExternFunc || exports[0].Index != 2 {
		t.Errorf("exports[0] = %+v", exports[0])
	}
	if exports[1].Name != "memory" || exports[1].Kind != ExternMemory {
		t.Errorf("exports[1] = %+v", exports[1])
	}
}

func TestDecodeImports(t *testing.T) {
	contents := []byte{
		0x02,
		// func import: greet-command.run, type 0
		0x0d, 'g', 'r', 'e', 'e', 't', '-', 'c', 'o', 'm', 'm', 'a', 'n', 'd',
		0x03, 'r', 'u', 'n', 0x00, 0x00,
		// memory import: env.mem, min 1 no max
		0x03, 'e', 'n', 'v', 0x03, 'm', 'e', 'm', 0x02, 0x00, 0x01,
	}
	imports, err := DecodeImports(contents)
	if err != nil {
		t.Fatalf("DecodeImports: %v", err)
	}
	if len(imports) != 2 {
		t.Fatalf("imports = %d, want 2", len(imports))
	}
	if imports[0].Module != "greet-command" || imports[0].Name != "run" || imports[0].Kind != ExternFunc {
		t.Errorf("imports[0] = %+v", imports[0])
	}
	if imports[1].Kind != ExternMemory {
		t.Errorf("imports[1] = %+v", imports[1])
	}
}
