package scan

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wacli"
	"github.com/wippyai/wacli/component"
	"github.com/wippyai/wacli/errors"
	"github.com/wippyai/wacli/metadata"
	"github.com/wippyai/wacli/wasm"
)

// namePattern is the shape every command name must have: lowercase
// kebab-case, starting with a letter. The name doubles as a WIT
// interface prefix, so anything looser would poison the generated
// interface text.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidName reports whether name is usable as a command name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Command is one discovered plugin: its name, the component file it came
// from, and the metadata extracted from it.
type Command struct {
	Name string
	Path string
	Meta *metadata.Metadata
}

// Schema returns the command's effective schema.
func (c Command) Schema() metadata.CommandSchema {
	return c.Meta.EffectiveSchema()
}

// Dir discovers command plugins in one directory: every file named
// <command>.component.wasm, excluding the registry artifact itself.
// Results are sorted by name, so the dispatch order downstream is a
// function of the directory contents alone.
func Dir(dir string) ([]Command, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.IO(errors.PhaseScan, dir, err)
	}

	log := Logger()
	var cmds []Command
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), wacli.ComponentSuffix) {
			continue
		}
		if entry.Name() == wacli.RegistryArtifact {
			log.Debug("skipping registry artifact", zap.String("dir", dir))
			continue
		}
		cmd, err := load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}

	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	log.Info("commands discovered", zap.String("dir", dir), zap.Int("count", len(cmds)))
	return cmds, nil
}

// Dirs discovers across several directories, rejecting a command name
// that appears in more than one.
func Dirs(dirs []string) ([]Command, error) {
	seen := map[string]string{} // name -> path
	var all []Command
	for _, dir := range dirs {
		cmds, err := Dir(dir)
		if err != nil {
			return nil, err
		}
		for _, c := range cmds {
			if prev, dup := seen[c.Name]; dup {
				return nil, errors.New(errors.PhaseScan, errors.KindDuplicate).
					Path(c.Name).
					Detail("command provided by both %s and %s", prev, c.Path).
					Build()
			}
			seen[c.Name] = c.Path
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

// load reads one component file and extracts its command metadata.
func load(path string) (Command, error) {
	name := strings.TrimSuffix(filepath.Base(path), wacli.ComponentSuffix)
	if !ValidName(name) {
		return Command{}, errors.InvalidName(errors.PhaseScan, name, "^[a-z][a-z0-9-]*$")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Command{}, errors.IO(errors.PhaseScan, path, err)
	}
	if !wasm.IsComponent(data) {
		return Command{}, errors.NotComponent(path, "bad magic or version")
	}

	payload, ok, err := component.FindCustom(data, wacli.MetadataSection)
	if err != nil {
		return Command{}, errors.Wrap(errors.PhaseScan, errors.KindInvalidData, err,
			path+": walk component sections")
	}
	if !ok {
		// toolchains that emit the metadata via a link section leave it
		// inside the embedded core module, not at the component level
		payload, ok = coreModuleCustom(data, wacli.MetadataSection)
	}
	if !ok {
		return Command{}, errors.NotFound(errors.PhaseScan, "metadata section", path)
	}

	meta, err := metadata.Decode(payload)
	if err != nil {
		return Command{}, err
	}
	if meta.Meta.Name != name {
		return Command{}, errors.Mismatch(errors.PhaseScan, "command name", meta.Meta.Name, name)
	}

	// a plugin without its command interface export still loads; the
	// composer is the authority on linkability
	if !exportsCommandInterface(data, name) {
		Logger().Warn("no command interface export",
			zap.String("name", name),
			zap.String("path", path))
	}

	Logger().Debug("command loaded",
		zap.String("name", name),
		zap.String("path", path),
		zap.Bool("full_schema", meta.Schema != nil))
	return Command{Name: name, Path: path, Meta: meta}, nil
}

// coreModuleCustom searches the component's embedded core modules for a
// named custom section.
func coreModuleCustom(data []byte, name string) ([]byte, bool) {
	modules, err := component.CoreModules(data)
	if err != nil {
		return nil, false
	}
	for _, core := range modules {
		m, err := wasm.DecodeModule(core)
		if err != nil {
			continue
		}
		if payload, ok := m.FindCustom(name); ok {
			return payload, true
		}
	}
	return nil, false
}

// exportsCommandInterface reports whether the component exports an
// instance for the command's interface.
func exportsCommandInterface(data []byte, name string) bool {
	exports, err := component.Exports(data)
	if err != nil {
		return false
	}
	want := name + "-command"
	for _, e := range exports {
		if strings.Contains(e.Name, want) {
			return true
		}
	}
	return false
}

// Schemas projects discovered commands into their schemas, preserving
// order.
func Schemas(cmds []Command) []metadata.CommandSchema {
	out := make([]metadata.CommandSchema, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Schema())
	}
	return out
}
