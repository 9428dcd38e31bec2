package registry

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/wacli"
	"github.com/wippyai/wacli/errors"
	"github.com/wippyai/wacli/metadata"
	"github.com/wippyai/wacli/verify"
	"github.com/wippyai/wacli/wasm"
)

// Options configures one generation run.
type Options struct {
	// App is the application descriptor baked into get-app-meta.
	App metadata.AppMeta

	// Commands are the discovered command schemas, in discovery order.
	// Dispatch order follows this slice exactly.
	Commands []metadata.CommandSchema

	// StrictAliases upgrades alias shadowing from a warning to an error.
	StrictAliases bool

	// Verify selects the post-assembly check of the artifact.
	Verify verify.Mode

	// ScratchDir, when set, receives a copy of the artifact as
	// registry.component.wasm.
	ScratchDir string

	// DefaultsDir, when set, is checked for a pre-built
	// registry.component.wasm that short-circuits generation.
	DefaultsDir string
}

// Generate compiles the registry component for the given schemas. Two
// calls with identical ordered input produce byte-identical output; the
// generator holds no state across calls.
func Generate(ctx context.Context, opts Options) ([]byte, error) {
	log := Logger()

	if opts.DefaultsDir != "" {
		if artifact, ok := prebuilt(opts.DefaultsDir); ok {
			log.Info("using pre-built registry",
				zap.String("dir", opts.DefaultsDir))
			if opts.ScratchDir != "" && opts.ScratchDir != opts.DefaultsDir {
				if err := writeArtifact(opts.ScratchDir, artifact); err != nil {
					return nil, err
				}
			}
			return artifact, nil
		}
	}

	if err := checkAliases(opts.Commands, opts.StrictAliases); err != nil {
		return nil, err
	}

	strtab := NewStringTable()
	strtab.InternSchemas(opts.App, opts.Commands)
	layouts := NewLayouts()

	watText, err := emit(layouts, strtab, opts.App, opts.Commands)
	if err != nil {
		return nil, err
	}

	doc := synthesizeWIT(layouts, opts.Commands)
	if err := doc.resolve(); err != nil {
		return nil, err
	}

	artifact, err := assemble(watText, buildMeta(doc, opts.Commands))
	if err != nil {
		return nil, err
	}

	if err := verify.Artifact(ctx, artifact, opts.Verify); err != nil {
		return nil, err
	}

	log.Info("registry generated",
		zap.Int("commands", len(opts.Commands)),
		zap.Int("string_table", strtab.Len()),
		zap.Int("artifact_bytes", len(artifact)))

	if opts.ScratchDir != "" {
		if err := writeArtifact(opts.ScratchDir, artifact); err != nil {
			return nil, err
		}
	}
	return artifact, nil
}

// prebuilt returns a pre-built registry artifact if one exists and is a
// component.
func prebuilt(dir string) ([]byte, bool) {
	path := filepath.Join(dir, wacli.RegistryArtifact)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if !wasm.IsComponent(data) {
		Logger().Warn("ignoring pre-built registry: not a component",
			zap.String("path", path))
		return nil, false
	}
	return data, true
}

// checkAliases walks the dispatch order and flags every name that can
// never match because an earlier entry claims it first. The order itself
// is never changed; first match wins exactly as emitted.
func checkAliases(cmds []metadata.CommandSchema, strict bool) error {
	log := Logger()
	claimed := map[string]string{} // name -> claiming command

	var shadowed []*errors.Error
	for _, c := range cmds {
		if owner, taken := claimed[c.Name]; taken {
			shadowed = append(shadowed, errors.ShadowedAlias(c.Name, owner, c.Name))
		} else {
			claimed[c.Name] = c.Name
		}
		for _, alias := range c.Aliases {
			if _, taken := claimed[alias]; taken {
				continue // dead alias, harmless
			}
			claimed[alias] = c.Name
		}
	}

	// an alias claimed before a later command's canonical name shadows
	// that command entirely
	for _, e := range shadowed {
		if strict {
			return e
		}
		log.Warn("alias shadows command", zap.String("detail", e.Detail))
	}
	return nil
}

func writeArtifact(dir string, artifact []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IO(errors.PhaseAssemble, dir, err)
	}
	path := filepath.Join(dir, wacli.RegistryArtifact)
	if err := os.WriteFile(path, artifact, 0o644); err != nil {
		return errors.IO(errors.PhaseAssemble, path, err)
	}
	Logger().Info("registry written", zap.String("path", path))
	return nil
}
