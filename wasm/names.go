package wasm

import (
	"bytes"
	"fmt"
	"io"
)

// ExternKind is the import/export descriptor tag.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0
	ExternTable  ExternKind = 1
	ExternMemory ExternKind = 2
	ExternGlobal ExternKind = 3
)

func (k ExternKind) String() string {
	switch k {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	}
	return fmt.Sprintf("extern(%d)", byte(k))
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// Import is one entry of the import section. The type descriptor is
// consumed but not retained; callers here only need names and kinds.
type Import struct {
	Module string
	Name   string
	Kind   ExternKind
}

func readName(r *bytes.Reader) (string, error) {
	n, err := ReadLEB128u(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func skipLimits(r *bytes.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	if _, err := ReadLEB128u(r); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		if _, err := ReadLEB128u(r); err != nil {
			return err
		}
	}
	return nil
}

// DecodeExports parses an export section's contents.
func DecodeExports(contents []byte) ([]Export, error) {
	r := bytes.NewReader(contents)
	count, err := ReadLEB128u(r)
	if err != nil {
		return nil, fmt.Errorf("export count: %w", err)
	}
	exports := make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("export %d name: %w", i, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("export %q kind: %w", name, err)
		}
		index, err := ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("export %q index: %w", name, err)
		}
		exports = append(exports, Export{Name: name, Kind: ExternKind(kind), Index: index})
	}
	return exports, nil
}

// DecodeImports parses an import section's contents.
func DecodeImports(contents []byte) ([]Import, error) {
	r := bytes.NewReader(contents)
	count, err := ReadLEB128u(r)
	if err != nil {
		return nil, fmt.Errorf("import count: %w", err)
	}
	imports := make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("import %d module: %w", i, err)
		}
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("import %d name: %w", i, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("import %s.%s kind: %w", mod, name, err)
		}
		switch ExternKind(kind) {
		case ExternFunc:
			if _, err := ReadLEB128u(r); err != nil {
				return nil, fmt.Errorf("import %s.%s type index: %w", mod, name, err)
			}
		case ExternTable:
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
			if err := skipLimits(r); err != nil {
				return nil, fmt.Errorf("import %s.%s table limits: %w", mod, name, err)
			}
		case ExternMemory:
			if err := skipLimits(r); err != nil {
				return nil, fmt.Errorf("import %s.%s memory limits: %w", mod, name, err)
			}
		case ExternGlobal:
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("import %s.%s: unknown kind %d", mod, name, kind)
		}
		imports = append(imports, Import{Module: mod, Name: name, Kind: ExternKind(kind)})
	}
	return imports, nil
}
