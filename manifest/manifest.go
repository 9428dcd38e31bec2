package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/wippyai/wacli/errors"
	"github.com/wippyai/wacli/metadata"
)

const (
	// FileName is the build manifest a project roots itself with.
	FileName = "wacli.json"

	// LockName is the digest lockfile written next to the manifest.
	LockName = "wacli.lock"
)

// Manifest is the project build manifest.
type Manifest struct {
	App           metadata.AppMeta `json:"app"`
	CommandDirs   []string         `json:"commandDirs,omitempty"`
	Output        string           `json:"output,omitempty"`
	StrictAliases bool             `json:"strictAliases,omitempty"`
	Verify        string           `json:"verify,omitempty"`

	// DefaultsDir holds a pre-built registry artifact that substitutes
	// for generation when present.
	DefaultsDir string `json:"defaultsDir,omitempty"`
}

// Load reads and validates the manifest in dir, applying defaults for
// omitted fields.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(errors.PhaseManifest, path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, path)
	}
	if m.App.Name == "" {
		return nil, errors.InvalidData(errors.PhaseManifest, []string{"app", "name"}, "empty application name")
	}
	if len(m.CommandDirs) == 0 {
		m.CommandDirs = []string{"commands"}
	}
	if m.Output == "" {
		m.Output = "build"
	}
	return &m, nil
}

// Save writes the manifest to dir.
func (m *Manifest) Save(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "encode manifest")
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.IO(errors.PhaseManifest, path, err)
	}
	return nil
}

// Lock records content digests of one build: the registry artifact and
// every command plugin that fed it. A later build can compare locks to
// tell whether regeneration is needed.
type Lock struct {
	Registry string            `json:"registry"`
	Commands map[string]string `json:"commands,omitempty"`
}

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewLock digests the artifact and the plugin files at the given paths,
// keyed by command name.
func NewLock(artifact []byte, plugins map[string]string) (*Lock, error) {
	l := &Lock{Registry: Digest(artifact)}
	if len(plugins) > 0 {
		l.Commands = make(map[string]string, len(plugins))
		for name, path := range plugins {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.IO(errors.PhaseManifest, path, err)
			}
			l.Commands[name] = Digest(data)
		}
	}
	return l, nil
}

// LoadLock reads the lockfile in dir. A missing lockfile is not an
// error; it loads as nil.
func LoadLock(dir string) (*Lock, error) {
	path := filepath.Join(dir, LockName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.IO(errors.PhaseManifest, path, err)
	}
	var l Lock
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, path)
	}
	return &l, nil
}

// Save writes the lockfile to dir with stable key order.
func (l *Lock) Save(dir string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return errors.Wrap(errors.PhaseManifest, errors.KindInvalidData, err, "encode lockfile")
	}
	path := filepath.Join(dir, LockName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.IO(errors.PhaseManifest, path, err)
	}
	return nil
}

// Equal reports whether two locks describe the same build inputs and
// output.
func (l *Lock) Equal(other *Lock) bool {
	if other == nil {
		return false
	}
	if l.Registry != other.Registry || len(l.Commands) != len(other.Commands) {
		return false
	}
	for name, digest := range l.Commands {
		if other.Commands[name] != digest {
			return false
		}
	}
	return true
}

// Names returns the locked command names sorted.
func (l *Lock) Names() []string {
	names := make([]string, 0, len(l.Commands))
	for name := range l.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
