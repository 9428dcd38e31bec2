package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wacli/component"
	"github.com/wippyai/wacli/metadata"
)

// harness instantiates a generated registry under wazero with stub
// imports, recording which command namespace each dispatch reaches.
type harness struct {
	t        *testing.T
	runtime  wazero.Runtime
	instance api.Module
	invoked  []string
}

func newHarness(t *testing.T, app metadata.AppMeta, cmds []metadata.CommandSchema) *harness {
	t.Helper()
	ctx := context.Background()

	artifact, err := Generate(ctx, Options{App: app, Commands: cmds})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	modules, err := component.CoreModules(artifact)
	if err != nil || len(modules) == 0 {
		t.Fatalf("no core module in artifact: %v", err)
	}

	h := &harness{t: t}
	h.runtime = wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithMemoryLimitPages(256))
	t.Cleanup(func() { h.runtime.Close(ctx) })

	i32 := []api.ValueType{api.ValueTypeI32}
	i32x3 := []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}
	for _, c := range cmds {
		ns := c.Name + "-command"
		builder := h.runtime.NewHostModuleBuilder(ns)
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, m api.Module, stack []uint64) {
				h.invoked = append(h.invoked, ns)
				m.Memory().WriteUint32Le(uint32(stack[2]), 0)
			}), i32x3, nil).
			Export("run")
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(context.Context, api.Module, []uint64) {}), i32, nil).
			Export("get-meta")
		if _, err := builder.Instantiate(ctx); err != nil {
			t.Fatalf("instantiate stub %q: %v", ns, err)
		}
	}

	compiled, err := h.runtime.CompileModule(ctx, modules[0])
	if err != nil {
		t.Fatalf("compile core module: %v", err)
	}
	h.instance, err = h.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("instantiate core module: %v", err)
	}
	return h
}

func (h *harness) call(name string, args ...uint64) uint64 {
	h.t.Helper()
	results, err := h.instance.ExportedFunction(name).Call(context.Background(), args...)
	if err != nil {
		h.t.Fatalf("call %s: %v", name, err)
	}
	return results[0]
}

func (h *harness) writeName(name string) (uint32, uint32) {
	h.t.Helper()
	ptr := uint32(h.call("cabi_realloc", 0, 0, 1, uint64(len(name))))
	if !h.instance.Memory().Write(ptr, []byte(name)) {
		h.t.Fatalf("write name %q at %d", name, ptr)
	}
	return ptr, uint32(len(name))
}

// run dispatches a name and returns the result discriminant and the
// slot pointer.
func (h *harness) run(name string) (uint32, uint32) {
	h.t.Helper()
	ptr, n := h.writeName(name)
	slot := uint32(h.call("run", uint64(ptr), uint64(n), 0, 0))
	disc := h.readU32(slot)
	return disc, slot
}

func (h *harness) readU32(addr uint32) uint32 {
	h.t.Helper()
	v, ok := h.instance.Memory().ReadUint32Le(addr)
	if !ok {
		h.t.Fatalf("read out of bounds at %d", addr)
	}
	return v
}

func (h *harness) readString(addr uint32) string {
	ptr := h.readU32(addr)
	n := h.readU32(addr + 4)
	data, ok := h.instance.Memory().Read(ptr, n)
	if !ok {
		h.t.Fatalf("string at (%d,%d) out of bounds", ptr, n)
	}
	return string(data)
}

func (h *harness) reset() {
	h.invoked = nil
}

func TestDispatchExactLengthGating(t *testing.T) {
	h := newHarness(t, metadata.AppMeta{Name: "app"}, []metadata.CommandSchema{
		{Name: "build"},
		{Name: "build2"},
	})

	if disc, _ := h.run("build"); disc != 0 {
		t.Fatalf("run(build) disc = %d", disc)
	}
	if len(h.invoked) != 1 || h.invoked[0] != "build-command" {
		t.Errorf("run(build) reached %v", h.invoked)
	}

	h.reset()
	if disc, _ := h.run("build2"); disc != 0 {
		t.Fatalf("run(build2) disc = %d", disc)
	}
	if len(h.invoked) != 1 || h.invoked[0] != "build2-command" {
		t.Errorf("run(build2) reached %v", h.invoked)
	}
}

func TestDispatchUnknownCarriesName(t *testing.T) {
	l := NewLayouts()
	h := newHarness(t, metadata.AppMeta{Name: "app"}, []metadata.CommandSchema{
		{Name: "greet"},
		{Name: "help"},
	})

	disc, slot := h.run("bye")
	if disc != 1 {
		t.Fatalf("run(bye) disc = %d, want error", disc)
	}
	if caseDisc := h.readU32(slot + l.ErrorCaseOffset); caseDisc != 0 {
		t.Errorf("error case = %d, want unknown-command", caseDisc)
	}
	if got := h.readString(slot + l.ErrorPayloadOffset); got != "bye" {
		t.Errorf("unknown-command payload = %q, want %q", got, "bye")
	}
	if len(h.invoked) != 0 {
		t.Errorf("unknown name reached %v", h.invoked)
	}
}

func TestDispatchAliasShadowsLaterCanonical(t *testing.T) {
	// command a claims "b" as an alias before command b is reached;
	// first match wins, exactly as emitted
	h := newHarness(t, metadata.AppMeta{Name: "app"}, []metadata.CommandSchema{
		{Name: "a", Aliases: []string{"b"}},
		{Name: "b"},
	})

	if disc, _ := h.run("b"); disc != 0 {
		t.Fatalf("run(b) disc = %d", disc)
	}
	if len(h.invoked) != 1 || h.invoked[0] != "a-command" {
		t.Errorf("run(b) reached %v, want a-command", h.invoked)
	}
}

func TestListSchemasRoundTrip(t *testing.T) {
	l := NewLayouts()
	short := "n"
	cmds := []metadata.CommandSchema{
		{
			Name:    "greet",
			Summary: "say hi",
			Aliases: []string{"hello"},
			Args: []metadata.ArgSchema{
				{Name: "name", Short: &short, TakesValue: true, ValueType: metadata.ValueString},
				{Name: "loud", ValueType: metadata.ValueBool},
			},
		},
		{Name: "bye"},
	}
	h := newHarness(t, metadata.AppMeta{Name: "app"}, cmds)

	ret := uint32(h.call("list-schemas"))
	arr := h.readU32(ret)
	count := h.readU32(ret + 4)
	if count != 2 {
		t.Fatalf("schema count = %d, want 2", count)
	}

	stride := l.CommandSchema.Size
	for i, c := range cmds {
		base := arr + uint32(i)*stride
		if got := h.readString(base + l.CommandSchema.Offset("name")); got != c.Name {
			t.Errorf("record %d name = %q, want %q", i, got, c.Name)
		}
		if got := h.readU32(base + l.CommandSchema.Offset("args") + 4); got != uint32(len(c.Args)) {
			t.Errorf("record %d arg count = %d, want %d", i, got, len(c.Args))
		}
		if got := h.readU32(base + l.CommandSchema.Offset("aliases") + 4); got != uint32(len(c.Aliases)) {
			t.Errorf("record %d alias count = %d, want %d", i, got, len(c.Aliases))
		}
	}

	// first record's first arg: name string and short presence tag
	argsPtr := h.readU32(arr + l.CommandSchema.Offset("args"))
	if got := h.readString(argsPtr + l.ArgSchema.Offset("name")); got != "name" {
		t.Errorf("arg name = %q", got)
	}
	tag, ok := h.instance.Memory().ReadByte(argsPtr + l.ArgSchema.Offset("short"))
	if !ok || tag != 1 {
		t.Errorf("short presence tag = %d, want 1", tag)
	}
	if got := h.readString(argsPtr + l.ArgSchema.Offset("short") + OptionPtrOffset); got != "n" {
		t.Errorf("short spelling = %q", got)
	}
}

func TestGetAppMetaRoundTrip(t *testing.T) {
	l := NewLayouts()
	app := metadata.AppMeta{Name: "demo", Version: "3.1.4", Description: "demo application"}
	h := newHarness(t, app, nil)

	ret := uint32(h.call("get-app-meta"))
	if got := h.readString(ret + l.AppMeta.Offset("name")); got != app.Name {
		t.Errorf("name = %q", got)
	}
	if got := h.readString(ret + l.AppMeta.Offset("version")); got != app.Version {
		t.Errorf("version = %q", got)
	}
	if got := h.readString(ret + l.AppMeta.Offset("description")); got != app.Description {
		t.Errorf("description = %q", got)
	}
}

func TestDispatchAllNamesAndAliases(t *testing.T) {
	cmds := []metadata.CommandSchema{
		{Name: "greet", Aliases: []string{"hello", "hi"}},
		{Name: "bye", Aliases: []string{"farewell"}},
	}
	h := newHarness(t, metadata.AppMeta{Name: "app"}, cmds)

	want := map[string]string{
		"greet":    "greet-command",
		"hello":    "greet-command",
		"hi":       "greet-command",
		"bye":      "bye-command",
		"farewell": "bye-command",
	}
	for name, ns := range want {
		h.reset()
		if disc, _ := h.run(name); disc != 0 {
			t.Errorf("run(%s) disc = %d", name, disc)
			continue
		}
		if len(h.invoked) != 1 || h.invoked[0] != ns {
			t.Errorf("run(%s) reached %v, want %s", name, h.invoked, ns)
		}
	}

	// near-misses must all fall through
	for _, name := range []string{"gree", "greets", "HELLO", "by", ""} {
		h.reset()
		disc, _ := h.run(name)
		if disc != 1 {
			t.Errorf("run(%q) disc = %d, want unknown", name, disc)
		}
		if len(h.invoked) != 0 {
			t.Errorf("run(%q) reached %v", name, h.invoked)
		}
	}
}

func TestDispatchNoNormalization(t *testing.T) {
	h := newHarness(t, metadata.AppMeta{Name: "app"}, []metadata.CommandSchema{{Name: "greet"}})
	for _, name := range []string{"Greet", " greet", "greet ", strings.ToUpper("greet")} {
		h.reset()
		if disc, _ := h.run(name); disc != 1 {
			t.Errorf("run(%q) matched; names must compare byte-exact", name)
		}
	}
}
