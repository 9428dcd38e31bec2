package registry

import (
	"fmt"
	"strings"

	"github.com/wippyai/wacli/errors"
	"github.com/wippyai/wacli/metadata"
)

// watTemplate is the fixed scaffold of the generated module. The call
// shapes are a closed set: the nullary i32 getters, the 4xi32 run entry,
// the imported per-command run (3xi32, out pointer) and get-meta (1xi32).
// Each placeholder must occur exactly once; emit fails fast otherwise.
const watTemplate = `(module $registry
{{IMPORTS}}
  (memory (export "memory") 1)
  (global $heap (mut i32) (i32.const {{HEAP_START}}))

  (func $alloc (param $size i32) (result i32) (local $ptr i32)
{{ALLOC_BODY}}  )

  (func $match-name (param $ptr i32) (param $len i32) (param $off i32) (param $want-len i32) (result i32) (local $i i32)
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
        (br $next)))
    (i32.const 1)
  )

  (func (export "cabi_realloc") (param i32 i32 i32 i32) (result i32)
    local.get 3
    call $alloc
  )

  (func (export "list-schemas") (result i32) (local $ret i32) (local $arr i32) (local $sub i32) (local $sub2 i32)
{{LIST_SCHEMAS_BODY}}  )

  (func (export "get-app-meta") (result i32) (local $ret i32)
{{GET_APP_META_BODY}}  )

  (func (export "run") (param $name-ptr i32) (param $name-len i32) (param $argv-ptr i32) (param $argv-len i32) (result i32) (local $slot i32)
{{RUN_BODY}}  )

{{STRING_DATA}})
`

// placeholders in substitution order.
var placeholders = []string{
	"{{IMPORTS}}",
	"{{HEAP_START}}",
	"{{ALLOC_BODY}}",
	"{{LIST_SCHEMAS_BODY}}",
	"{{GET_APP_META_BODY}}",
	"{{RUN_BODY}}",
	"{{STRING_DATA}}",
}

// heapSlack pads the arena start past the string table.
const heapSlack = 1024

func heapStart(tableLen int) uint32 {
	return alignTo(uint32(tableLen), 4) + heapSlack
}

// emit renders the complete WAT text for the given schemas.
func emit(l *Layouts, t *StringTable, app metadata.AppMeta, cmds []metadata.CommandSchema) (string, error) {
	repl := map[string]string{
		"{{IMPORTS}}":           renderImports(cmds),
		"{{HEAP_START}}":        fmt.Sprintf("%d", heapStart(t.Len())),
		"{{ALLOC_BODY}}":        buildAllocBody().Render(2),
		"{{LIST_SCHEMAS_BODY}}": buildListSchemasBody(l, t, cmds).Render(2),
		"{{GET_APP_META_BODY}}": buildGetAppMetaBody(l, t, app).Render(2),
		"{{RUN_BODY}}":          buildRunBody(l, t, cmds).Render(2),
		"{{STRING_DATA}}":       renderData(t),
	}
	return applyTemplate(watTemplate, repl)
}

// applyTemplate substitutes placeholders after checking that each occurs
// exactly once. A miscounted placeholder aborts generation; no artifact
// is produced from a malformed scaffold.
func applyTemplate(tmpl string, repl map[string]string) (string, error) {
	for _, name := range placeholders {
		if count := strings.Count(tmpl, name); count != 1 {
			return "", errors.Placeholder(name, count)
		}
	}
	out := tmpl
	for _, name := range placeholders {
		out = strings.Replace(out, name, repl[name], 1)
	}
	if i := strings.Index(out, "{{"); i >= 0 {
		end := i + 40
		if end > len(out) {
			end = len(out)
		}
		return "", errors.New(errors.PhaseEmit, errors.KindPlaceholder).
			Detail("unexpected placeholder near %q", out[i:end]).
			Build()
	}
	return out, nil
}

func renderImports(cmds []metadata.CommandSchema) string {
	var b strings.Builder
	for i, c := range cmds {
		ns := c.Name + "-command"
		fmt.Fprintf(&b, "  (import %q \"run\" (func $%s (param i32 i32 i32)))\n", ns, runImportSym(i))
		fmt.Fprintf(&b, "  (import %q \"get-meta\" (func $%s (param i32)))\n", ns, metaImportSym(i))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderData(t *StringTable) string {
	if t.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("  (data (i32.const 0) \"%s\")\n", escapeBytes(t.Bytes()))
}

// escapeBytes renders a byte blob as a WAT string literal: printable
// ASCII stays verbatim, everything else becomes a two-digit hex escape.
func escapeBytes(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "\\%02x", c)
		}
	}
	return b.String()
}
