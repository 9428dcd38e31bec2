package registry

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wacli"
	"github.com/wippyai/wacli/errors"
	"github.com/wippyai/wacli/metadata"
)

// The WIT view of the generated module is rendered from the same layout
// tables the body builders store through. A field added to a record shows
// up in both the emitted stores and the interface text or in neither.

type witTypeDecl struct {
	name string
	text string
	refs []string
}

type witUse struct {
	from  string
	names []string
}

type witFunc struct {
	name      string
	signature string
	refs      []string
}

type witInterface struct {
	name  string
	uses  []witUse
	types []witTypeDecl
	funcs []witFunc
}

type witWorld struct {
	name    string
	imports []string
	exports []string
}

type witDocument struct {
	pkg        string
	interfaces []*witInterface
	world      witWorld
}

// synthesizeWIT builds the interface graph for the generated registry:
// a shared types interface, the registry interface, and one sub-interface
// per command.
func synthesizeWIT(l *Layouts, cmds []metadata.CommandSchema) *witDocument {
	types := &witInterface{
		name: "types",
		types: []witTypeDecl{
			renderRecordDecl(l, l.ArgSchema),
			renderRecordDecl(l, l.CommandSchema),
			renderRecordDecl(l, l.AppMeta),
			{
				name: "run-error",
				text: "variant run-error {\n" +
					"    unknown-command(string),\n" +
					"    failed(string),\n" +
					"  }",
			},
		},
	}

	registry := &witInterface{
		name: "registry",
		uses: []witUse{{from: "types", names: []string{"command-schema", "app-meta", "run-error"}}},
		funcs: []witFunc{
			{
				name:      "list-schemas",
				signature: "list-schemas: func() -> list<command-schema>;",
				refs:      []string{"command-schema"},
			},
			{
				name:      "get-app-meta",
				signature: "get-app-meta: func() -> app-meta;",
				refs:      []string{"app-meta"},
			},
			{
				name:      "run",
				signature: "run: func(name: string, args: list<string>) -> result<_, run-error>;",
				refs:      []string{"run-error"},
			},
		},
	}

	doc := &witDocument{
		pkg:        wacli.CommandNamespace + "@2.0.0",
		interfaces: []*witInterface{types, registry},
		world:      witWorld{name: "dynamic-registry", exports: []string{"registry"}},
	}

	for _, c := range cmds {
		name := c.Name + "-command"
		doc.interfaces = append(doc.interfaces, &witInterface{
			name: name,
			uses: []witUse{{from: "types", names: []string{"command-schema", "run-error"}}},
			funcs: []witFunc{
				{
					name:      "run",
					signature: "run: func(args: list<string>) -> result<_, run-error>;",
					refs:      []string{"run-error"},
				},
				{
					name:      "get-meta",
					signature: "get-meta: func() -> command-schema;",
					refs:      []string{"command-schema"},
				},
			},
		})
		doc.world.imports = append(doc.world.imports, name)
	}

	return doc
}

// resolve walks the interface graph and fails on any dangling reference:
// a use of an unknown interface, a use of an undeclared type, a function
// referencing a type that is neither declared nor used, or a world entry
// naming a missing interface.
func (d *witDocument) resolve() error {
	byName := map[string]*witInterface{}
	for _, iface := range d.interfaces {
		if _, dup := byName[iface.name]; dup {
			return errors.Duplicate(errors.PhaseWit, "interface", iface.name)
		}
		byName[iface.name] = iface
	}

	for _, iface := range d.interfaces {
		visible := map[string]bool{}
		for _, t := range iface.types {
			visible[t.name] = true
		}
		for _, use := range iface.uses {
			src, ok := byName[use.from]
			if !ok {
				return errors.Unresolved(errors.PhaseWit, "interface", use.from)
			}
			declared := map[string]bool{}
			for _, t := range src.types {
				declared[t.name] = true
			}
			for _, n := range use.names {
				if !declared[n] {
					return errors.New(errors.PhaseWit, errors.KindUnresolved).
						Path(iface.name).
						Detail("use of type %q not declared by interface %q", n, use.from).
						Build()
				}
				visible[n] = true
			}
		}
		for _, t := range iface.types {
			for _, ref := range t.refs {
				if !visible[ref] {
					return errors.New(errors.PhaseWit, errors.KindUnresolved).
						Path(iface.name, t.name).
						Detail("reference to unknown type %q", ref).
						Build()
				}
			}
		}
		for _, f := range iface.funcs {
			for _, ref := range f.refs {
				if !visible[ref] {
					return errors.New(errors.PhaseWit, errors.KindUnresolved).
						Path(iface.name, f.name).
						Detail("reference to unknown type %q", ref).
						Build()
				}
			}
		}
	}

	for _, n := range append(append([]string{}, d.world.imports...), d.world.exports...) {
		if _, ok := byName[n]; !ok {
			return errors.Unresolved(errors.PhaseWit, "world interface", n)
		}
	}
	return nil
}

// render produces the WIT text.
func (d *witDocument) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n", d.pkg)
	for _, iface := range d.interfaces {
		fmt.Fprintf(&b, "\ninterface %s {\n", iface.name)
		for _, use := range iface.uses {
			fmt.Fprintf(&b, "  use %s.{%s};\n", use.from, strings.Join(use.names, ", "))
		}
		for _, t := range iface.types {
			fmt.Fprintf(&b, "  %s\n", t.text)
		}
		for _, f := range iface.funcs {
			fmt.Fprintf(&b, "  %s\n", f.signature)
		}
		b.WriteString("}\n")
	}

	fmt.Fprintf(&b, "\nworld %s {\n", d.world.name)
	for _, n := range d.world.imports {
		fmt.Fprintf(&b, "  import %s;\n", n)
	}
	for _, n := range d.world.exports {
		fmt.Fprintf(&b, "  export %s;\n", n)
	}
	b.WriteString("}\n")
	return b.String()
}

// renderRecordDecl renders one record from its layout table.
func renderRecordDecl(l *Layouts, r *RecordLayout) witTypeDecl {
	var b strings.Builder
	var refs []string
	fmt.Fprintf(&b, "record %s {\n", r.Name)
	for _, f := range r.Fields {
		text, ref := typeText(l, f.Type)
		fmt.Fprintf(&b, "    %s: %s,\n", f.Name, text)
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	b.WriteString("  }")
	return witTypeDecl{name: r.Name, text: b.String(), refs: refs}
}

// typeText renders a wit type reference, returning the named type it
// leans on, if any.
func typeText(l *Layouts, t wit.Type) (string, string) {
	switch typ := t.(type) {
	case wit.String:
		return "string", ""
	case wit.Bool:
		return "bool", ""
	case wit.U32:
		return "u32", ""
	case *wit.TypeDef:
		if typ == l.ArgSchema.def {
			return l.ArgSchema.Name, l.ArgSchema.Name
		}
		if typ == l.CommandSchema.def {
			return l.CommandSchema.Name, l.CommandSchema.Name
		}
		if typ == l.AppMeta.def {
			return l.AppMeta.Name, l.AppMeta.Name
		}
		if typ == l.runErrorDef {
			return "run-error", "run-error"
		}
		switch kind := typ.Kind.(type) {
		case *wit.Option:
			inner, ref := typeText(l, kind.Type)
			return "option<" + inner + ">", ref
		case *wit.List:
			inner, ref := typeText(l, kind.Type)
			return "list<" + inner + ">", ref
		}
	}
	return "unknown", ""
}

// Meta is the payload bound into the component-type:registry custom
// section: everything a downstream composer needs to link the artifact
// without re-deriving its interface.
type Meta struct {
	Interface string   `json:"interface"`
	World     string   `json:"world"`
	Commands  []string `json:"commands"`
	WIT       string   `json:"wit"`
}

func buildMeta(doc *witDocument, cmds []metadata.CommandSchema) *Meta {
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	return &Meta{
		Interface: wacli.RegistryInterface,
		World:     doc.world.name,
		Commands:  names,
		WIT:       doc.render(),
	}
}
