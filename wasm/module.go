package wasm

import (
	"bytes"
	"fmt"
	"io"
)

// Magic is the 4-byte preamble shared by core modules and components.
var Magic = []byte{0x00, 0x61, 0x73, 0x6d}

// Version bytes following the magic. Core modules and components diverge
// here: components reuse the magic with a layered version field.
var (
	CoreVersion      = []byte{0x01, 0x00, 0x00, 0x00}
	ComponentVersion = []byte{0x0d, 0x00, 0x01, 0x00}
)

// SectionID identifies a core module section.
type SectionID byte

const (
	SectionCustom    SectionID = 0
	SectionType      SectionID = 1
	SectionImport    SectionID = 2
	SectionFunction  SectionID = 3
	SectionTable     SectionID = 4
	SectionMemory    SectionID = 5
	SectionGlobal    SectionID = 6
	SectionExport    SectionID = 7
	SectionStart     SectionID = 8
	SectionElement   SectionID = 9
	SectionCode      SectionID = 10
	SectionData      SectionID = 11
	SectionDataCount SectionID = 12
)

// Section is one raw section of a core module: id byte plus contents,
// without the size prefix.
type Section struct {
	ID       SectionID
	Contents []byte
}

// Module is a core module split into raw sections. The walker keeps
// section payloads opaque; only the sections a caller asks about are
// decoded further.
type Module struct {
	Sections []Section
}

// IsCoreModule reports whether data carries the core module preamble.
func IsCoreModule(data []byte) bool {
	return len(data) >= 8 &&
		bytes.Equal(data[:4], Magic) &&
		bytes.Equal(data[4:8], CoreVersion)
}

// IsComponent reports whether data carries the component preamble.
func IsComponent(data []byte) bool {
	return len(data) >= 8 &&
		bytes.Equal(data[:4], Magic) &&
		bytes.Equal(data[4:8], ComponentVersion)
}

// DecodeModule splits a core module binary into its sections.
func DecodeModule(data []byte) (*Module, error) {
	if !IsCoreModule(data) {
		return nil, fmt.Errorf("not a core module: bad magic or version")
	}
	m := &Module{}
	r := bytes.NewReader(data[8:])
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if id > byte(SectionDataCount) {
			return nil, fmt.Errorf("invalid section id %d", id)
		}
		size, err := ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("section %d size: %w", id, err)
		}
		contents := make([]byte, size)
		if _, err := io.ReadFull(r, contents); err != nil {
			return nil, fmt.Errorf("section %d truncated: %w", id, err)
		}
		m.Sections = append(m.Sections, Section{ID: SectionID(id), Contents: contents})
	}
	return m, nil
}

// Encode reassembles the module into binary form, preserving section order.
func (m *Module) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(Magic)
	buf.Write(CoreVersion)
	for _, s := range m.Sections {
		buf.WriteByte(byte(s.ID))
		WriteLEB128u(&buf, uint32(len(s.Contents)))
		buf.Write(s.Contents)
	}
	return buf.Bytes()
}

// Section returns the first section with the given id, or nil.
func (m *Module) Section(id SectionID) *Section {
	for i := range m.Sections {
		if m.Sections[i].ID == id {
			return &m.Sections[i]
		}
	}
	return nil
}

// CustomName splits a custom section's contents into its name and payload.
func CustomName(contents []byte) (string, []byte, error) {
	r := bytes.NewReader(contents)
	n, err := ReadLEB128u(r)
	if err != nil {
		return "", nil, fmt.Errorf("custom section name length: %w", err)
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return "", nil, fmt.Errorf("custom section name truncated: %w", err)
	}
	payload := contents[len(contents)-r.Len():]
	return string(name), payload, nil
}

// AppendCustom appends a named custom section to a core module binary
// without re-encoding the existing sections.
func AppendCustom(module []byte, name string, payload []byte) ([]byte, error) {
	if !IsCoreModule(module) {
		return nil, fmt.Errorf("not a core module: bad magic or version")
	}
	var contents bytes.Buffer
	WriteLEB128u(&contents, uint32(len(name)))
	contents.WriteString(name)
	contents.Write(payload)

	out := make([]byte, 0, len(module)+contents.Len()+8)
	out = append(out, module...)
	out = append(out, byte(SectionCustom))
	out = append(out, EncodeLEB128u(uint32(contents.Len()))...)
	out = append(out, contents.Bytes()...)
	return out, nil
}

// FindCustom returns the payload of the first custom section with the
// given name, walking a decoded module.
func (m *Module) FindCustom(name string) ([]byte, bool) {
	for _, s := range m.Sections {
		if s.ID != SectionCustom {
			continue
		}
		n, payload, err := CustomName(s.Contents)
		if err != nil {
			continue
		}
		if n == name {
			return payload, true
		}
	}
	return nil, false
}
