package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wacli"
	"github.com/wippyai/wacli/component"
	"github.com/wippyai/wacli/errors"
	"github.com/wippyai/wacli/wasm"
)

// Mode selects how much checking a freshly assembled registry gets.
type Mode string

const (
	// ModeOff skips verification entirely.
	ModeOff Mode = "off"

	// ModeStructural decodes the artifact and checks its shape without
	// running any code.
	ModeStructural Mode = "structural"

	// ModeExecute additionally instantiates the core module under a
	// sandboxed runtime with stubbed command imports and exercises the
	// exported entry points.
	ModeExecute Mode = "execute"
)

// ParseMode converts a flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOff, ModeStructural, ModeExecute:
		return Mode(s), nil
	case "":
		return ModeOff, nil
	}
	return "", errors.Unsupported(errors.PhaseVerify, fmt.Sprintf("verify mode %q", s))
}

// Artifact runs the selected check against a registry component binary.
func Artifact(ctx context.Context, artifact []byte, mode Mode) error {
	switch mode {
	case "", ModeOff:
		return nil
	case ModeStructural:
		return Structural(artifact)
	case ModeExecute:
		if err := Structural(artifact); err != nil {
			return err
		}
		return Execute(ctx, artifact)
	}
	return errors.Unsupported(errors.PhaseVerify, fmt.Sprintf("verify mode %q", mode))
}

// registryMeta is the slice of the bound metadata the checker cares
// about.
type registryMeta struct {
	Interface string `json:"interface"`
	World     string `json:"world"`
}

// exported function names every registry must carry.
var requiredExports = []string{"list-schemas", "get-app-meta", "run", "cabi_realloc"}

// Structural checks the artifact shape: component preamble, bound
// interface metadata, an embedded core module, the required exports,
// and imports confined to per-command run/get-meta pairs.
func Structural(artifact []byte) error {
	if !wasm.IsComponent(artifact) {
		return errors.New(errors.PhaseVerify, errors.KindNotComponent).
			Detail("artifact is not a component binary").
			Build()
	}

	payload, ok, err := component.FindCustom(artifact, wacli.RegistrySection)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "walk component sections")
	}
	if !ok {
		return errors.NotFound(errors.PhaseVerify, "custom section", wacli.RegistrySection)
	}
	var meta registryMeta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "decode registry metadata")
	}
	if meta.Interface != wacli.RegistryInterface {
		return errors.Mismatch(errors.PhaseVerify, "registry interface", meta.Interface, wacli.RegistryInterface)
	}

	core, err := coreModule(artifact)
	if err != nil {
		return err
	}
	mod, err := wasm.DecodeModule(core)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "decode embedded core module")
	}

	// the metadata is bound to the module itself, not only to the wrapper
	if _, ok := mod.FindCustom(wacli.RegistrySection); !ok {
		return errors.NotFound(errors.PhaseVerify, "module custom section", wacli.RegistrySection)
	}

	if err := checkExports(mod); err != nil {
		return err
	}
	return checkImports(mod)
}

func coreModule(artifact []byte) ([]byte, error) {
	modules, err := component.CoreModules(artifact)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "walk component sections")
	}
	if len(modules) == 0 {
		return nil, errors.NotFound(errors.PhaseVerify, "section", "core module")
	}
	return modules[0], nil
}

func checkExports(mod *wasm.Module) error {
	sec := mod.Section(wasm.SectionExport)
	if sec == nil {
		return errors.NotFound(errors.PhaseVerify, "section", "export")
	}
	exports, err := wasm.DecodeExports(sec.Contents)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "decode export section")
	}

	funcs := map[string]bool{}
	haveMemory := false
	for _, e := range exports {
		switch e.Kind {
		case wasm.ExternFunc:
			funcs[e.Name] = true
		case wasm.ExternMemory:
			if e.Name == "memory" {
				haveMemory = true
			}
		}
	}
	for _, name := range requiredExports {
		if !funcs[name] {
			return errors.NotFound(errors.PhaseVerify, "export", name)
		}
	}
	if !haveMemory {
		return errors.NotFound(errors.PhaseVerify, "export", "memory")
	}
	return nil
}

func checkImports(mod *wasm.Module) error {
	sec := mod.Section(wasm.SectionImport)
	if sec == nil {
		return nil // zero commands, nothing imported
	}
	imports, err := wasm.DecodeImports(sec.Contents)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "decode import section")
	}
	for _, imp := range imports {
		if imp.Kind != wasm.ExternFunc {
			return errors.New(errors.PhaseVerify, errors.KindUnsupported).
				Path(imp.Module, imp.Name).
				Detail("non-function import of kind %s", imp.Kind).
				Build()
		}
		if !strings.HasSuffix(imp.Module, "-command") {
			return errors.New(errors.PhaseVerify, errors.KindUnsupported).
				Path(imp.Module, imp.Name).
				Detail("import namespace outside command set").
				Build()
		}
		if imp.Name != "run" && imp.Name != "get-meta" {
			return errors.New(errors.PhaseVerify, errors.KindUnsupported).
				Path(imp.Module, imp.Name).
				Detail("unexpected import function").
				Build()
		}
	}
	return nil
}

// memoryLimitPages bounds the instance during execute verification. The
// generated module carries an unchecked bump allocator; a runaway arena
// hits this limit and traps instead of growing silently.
const memoryLimitPages = 256

// Execute instantiates the embedded core module with stub host modules
// standing in for every imported command, then drives the exports: both
// getters must return non-zero pointers, dispatch of an unknown name
// must produce the error case without touching any stub, and dispatch
// of a known name must reach exactly that command's stub.
func Execute(ctx context.Context, artifact []byte) error {
	core, err := coreModule(artifact)
	if err != nil {
		return err
	}
	mod, err := wasm.DecodeModule(core)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "decode embedded core module")
	}

	var namespaces []string
	if sec := mod.Section(wasm.SectionImport); sec != nil {
		imports, err := wasm.DecodeImports(sec.Contents)
		if err != nil {
			return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "decode import section")
		}
		seen := map[string]bool{}
		for _, imp := range imports {
			if !seen[imp.Module] {
				seen[imp.Module] = true
				namespaces = append(namespaces, imp.Module)
			}
		}
	}

	runtimeCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(memoryLimitPages).
		WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	defer runtime.Close(ctx)

	invoked := map[string]bool{}
	i32 := []api.ValueType{api.ValueTypeI32}
	i32x3 := []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}

	for _, ns := range namespaces {
		ns := ns
		builder := runtime.NewHostModuleBuilder(ns)
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, m api.Module, stack []uint64) {
				invoked[ns] = true
				// ok discriminant into the caller's result slot
				m.Memory().WriteUint32Le(uint32(stack[2]), 0)
			}), i32x3, nil).
			Export("run")
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(context.Context, api.Module, []uint64) {}), i32, nil).
			Export("get-meta")
		if _, err := builder.Instantiate(ctx); err != nil {
			return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err,
				fmt.Sprintf("instantiate stub host module %q", ns))
		}
	}

	compiled, err := runtime.CompileModule(ctx, core)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "compile core module")
	}
	instance, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("registry"))
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "instantiate core module")
	}

	for _, name := range []string{"list-schemas", "get-app-meta"} {
		results, err := instance.ExportedFunction(name).Call(ctx)
		if err != nil {
			return errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "call "+name)
		}
		if len(results) != 1 || uint32(results[0]) == 0 {
			return errors.New(errors.PhaseVerify, errors.KindInvalidData).
				Detail("%s returned no result pointer", name).
				Build()
		}
	}

	disc, err := dispatch(ctx, instance, "command-that-does-not-exist")
	if err != nil {
		return err
	}
	if disc != 1 {
		return errors.Mismatch(errors.PhaseVerify, "unknown-command discriminant", fmt.Sprint(disc), "1")
	}
	if len(invoked) != 0 {
		return errors.New(errors.PhaseVerify, errors.KindMismatch).
			Detail("unknown command reached a command stub").
			Build()
	}

	if len(namespaces) > 0 {
		ns := namespaces[0]
		name := strings.TrimSuffix(ns, "-command")
		disc, err := dispatch(ctx, instance, name)
		if err != nil {
			return err
		}
		if disc != 0 {
			return errors.Mismatch(errors.PhaseVerify, "dispatch discriminant", fmt.Sprint(disc), "0")
		}
		if !invoked[ns] {
			return errors.New(errors.PhaseVerify, errors.KindMismatch).
				Detail("dispatch of %q never reached its stub", name).
				Build()
		}
		Logger().Debug("dispatch verified",
			zap.String("command", name),
			zap.Int("stubs", len(namespaces)))
	}
	return nil
}

// dispatch copies name into guest memory via cabi_realloc and calls run,
// returning the result discriminant from the slot the module hands back.
func dispatch(ctx context.Context, instance api.Module, name string) (uint32, error) {
	results, err := instance.ExportedFunction("cabi_realloc").Call(ctx, 0, 0, 1, uint64(len(name)))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "allocate name buffer")
	}
	ptr := uint32(results[0])
	if !instance.Memory().Write(ptr, []byte(name)) {
		return 0, errors.New(errors.PhaseVerify, errors.KindInvalidData).
			Detail("name buffer at %d out of bounds", ptr).
			Build()
	}

	results, err = instance.ExportedFunction("run").Call(ctx, uint64(ptr), uint64(len(name)), 0, 0)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "call run")
	}
	slot := uint32(results[0])
	disc, ok := instance.Memory().ReadUint32Le(slot)
	if !ok {
		return 0, errors.New(errors.PhaseVerify, errors.KindInvalidData).
			Detail("result slot at %d out of bounds", slot).
			Build()
	}
	return disc, nil
}
