package component

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wippyai/wacli/wasm"
)

// Component-level section ids.
const (
	SectionCustom     byte = 0
	SectionCoreModule byte = 1
	SectionInstance   byte = 5
	SectionType       byte = 7
	SectionCanon      byte = 8
	SectionImport     byte = 10
	SectionExport     byte = 11
)

// Sorts used by import/export descriptors.
const (
	SortCore     byte = 0x00
	SortFunc     byte = 0x01
	SortType     byte = 0x03
	SortInstance byte = 0x05
)

// Section is one raw top-level section of a component.
type Section struct {
	ID       byte
	Contents []byte
}

// Export is one component-level export, name plus sort.
type Export struct {
	Name      string
	Sort      byte
	SortIndex uint32
}

// Sections splits a component binary into its top-level sections.
func Sections(data []byte) ([]Section, error) {
	if !wasm.IsComponent(data) {
		return nil, fmt.Errorf("not a component: bad magic or version")
	}
	var sections []Section
	r := bytes.NewReader(data[8:])
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := wasm.ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("section %d size: %w", id, err)
		}
		contents := make([]byte, size)
		if _, err := io.ReadFull(r, contents); err != nil {
			return nil, fmt.Errorf("section %d truncated: %w", id, err)
		}
		sections = append(sections, Section{ID: id, Contents: contents})
	}
	return sections, nil
}

// Wrap embeds a core module binary in a minimal component, attaching a
// named custom section at the component level.
func Wrap(core []byte, customName string, payload []byte) ([]byte, error) {
	if !wasm.IsCoreModule(core) {
		return nil, fmt.Errorf("not a core module: bad magic or version")
	}

	var out bytes.Buffer
	out.Write(wasm.Magic)
	out.Write(wasm.ComponentVersion)

	out.WriteByte(SectionCoreModule)
	wasm.WriteLEB128u(&out, uint32(len(core)))
	out.Write(core)

	if customName != "" {
		var contents bytes.Buffer
		wasm.WriteLEB128u(&contents, uint32(len(customName)))
		contents.WriteString(customName)
		contents.Write(payload)

		out.WriteByte(SectionCustom)
		wasm.WriteLEB128u(&out, uint32(contents.Len()))
		out.Write(contents.Bytes())
	}

	return out.Bytes(), nil
}

// FindCustom returns the payload of the first component-level custom
// section with the given name.
func FindCustom(data []byte, name string) ([]byte, bool, error) {
	sections, err := Sections(data)
	if err != nil {
		return nil, false, err
	}
	for _, s := range sections {
		if s.ID != SectionCustom {
			continue
		}
		n, payload, err := wasm.CustomName(s.Contents)
		if err != nil {
			continue
		}
		if n == name {
			return payload, true, nil
		}
	}
	return nil, false, nil
}

// CoreModules returns the embedded core module binaries in section order.
func CoreModules(data []byte) ([][]byte, error) {
	sections, err := Sections(data)
	if err != nil {
		return nil, err
	}
	var modules [][]byte
	for _, s := range sections {
		if s.ID == SectionCoreModule {
			modules = append(modules, s.Contents)
		}
	}
	return modules, nil
}

// Exports decodes every component-level export section.
func Exports(data []byte) ([]Export, error) {
	sections, err := Sections(data)
	if err != nil {
		return nil, err
	}
	var exports []Export
	for _, s := range sections {
		if s.ID != SectionExport {
			continue
		}
		es, err := decodeExports(s.Contents)
		if err != nil {
			return nil, err
		}
		exports = append(exports, es...)
	}
	return exports, nil
}

func decodeExports(data []byte) ([]Export, error) {
	r := bytes.NewReader(data)
	count, err := wasm.ReadLEB128u(r)
	if err != nil {
		return nil, err
	}
	if count > 100000 {
		return nil, fmt.Errorf("export count %d exceeds maximum", count)
	}

	exports := make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		// name kind byte: 0x00 plain, 0x01 version embedded in name
		if _, err := r.ReadByte(); err != nil {
			return nil, fmt.Errorf("export %d: read name kind: %w", i, err)
		}
		nameLen, err := wasm.ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("export %d: read name length: %w", i, err)
		}
		if nameLen > 10000 {
			return nil, fmt.Errorf("export %d: name length %d exceeds maximum", i, nameLen)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, fmt.Errorf("export %d: read name: %w", i, err)
		}

		sort, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("export %d: read sort: %w", i, err)
		}
		if sort == SortCore {
			if _, err := r.ReadByte(); err != nil {
				return nil, fmt.Errorf("export %d: read core sort: %w", i, err)
			}
		}
		sortIndex, err := wasm.ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("export %d: read sort index: %w", i, err)
		}

		exports = append(exports, Export{
			Name:      string(nameBytes),
			Sort:      sort,
			SortIndex: sortIndex,
		})
	}
	return exports, nil
}
