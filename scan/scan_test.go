package scan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/wacli"
	"github.com/wippyai/wacli/component"
	"github.com/wippyai/wacli/metadata"
	"github.com/wippyai/wacli/scan"
	"github.com/wippyai/wacli/wasm"
	"github.com/wippyai/wacli/wat"
)

// writePlugin fabricates a minimal command component on disk.
func writePlugin(t *testing.T, dir, name string, meta *metadata.Metadata) string {
	t.Helper()
	core, err := wat.Compile(`(module (func (export "noop")))`)
	if err != nil {
		t.Fatalf("compile stub module: %v", err)
	}
	var payload []byte
	section := ""
	if meta != nil {
		payload, err = meta.Encode()
		if err != nil {
			t.Fatalf("encode metadata: %v", err)
		}
		section = wacli.MetadataSection
	}
	artifact, err := component.Wrap(core, section, payload)
	if err != nil {
		t.Fatalf("wrap component: %v", err)
	}
	path := filepath.Join(dir, name+wacli.ComponentSuffix)
	if err := os.WriteFile(path, artifact, 0o644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	return path
}

func simpleMeta(name string) *metadata.Metadata {
	return &metadata.Metadata{
		Meta: metadata.CommandMeta{Name: name, Summary: name + " summary", Version: "1.0.0"},
	}
}

func TestDirDiscoversSorted(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "greet", simpleMeta("greet"))
	writePlugin(t, dir, "bye", simpleMeta("bye"))

	cmds, err := scan.Dir(dir)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("discovered %d commands, want 2", len(cmds))
	}
	if cmds[0].Name != "bye" || cmds[1].Name != "greet" {
		t.Errorf("order = %s, %s; want bye, greet", cmds[0].Name, cmds[1].Name)
	}
	if cmds[1].Schema().Summary != "greet summary" {
		t.Errorf("schema not synthesized from meta block: %+v", cmds[1].Schema())
	}
}

func TestDirSkipsRegistryArtifact(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "greet", simpleMeta("greet"))
	// a stale registry artifact next to the plugins must not be scanned
	stale := writePlugin(t, dir, "registry", nil)
	if filepath.Base(stale) != wacli.RegistryArtifact {
		t.Fatalf("fixture name %s drifted from registry artifact name", filepath.Base(stale))
	}

	cmds, err := scan.Dir(dir)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Name != "greet" {
		t.Errorf("commands = %v", cmds)
	}
}

func TestDirIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "greet", simpleMeta("greet"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmds, err := scan.Dir(dir)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(cmds) != 1 {
		t.Errorf("discovered %d commands, want 1", len(cmds))
	}
}

func TestDirRejectsNonComponent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greet"+wacli.ComponentSuffix)
	if err := os.WriteFile(path, []byte("not wasm"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := scan.Dir(dir); err == nil {
		t.Fatal("expected error for non-component file")
	}
}

func TestDirFindsCoreModuleMetadata(t *testing.T) {
	// metadata placed inside the embedded core module, the way a link
	// section leaves it, rather than at the component level
	dir := t.TempDir()
	core, err := wat.Compile(`(module (func (export "noop")))`)
	if err != nil {
		t.Fatalf("compile stub module: %v", err)
	}
	payload, err := simpleMeta("greet").Encode()
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	core, err = wasm.AppendCustom(core, wacli.MetadataSection, payload)
	if err != nil {
		t.Fatalf("append custom section: %v", err)
	}
	artifact, err := component.Wrap(core, "", nil)
	if err != nil {
		t.Fatalf("wrap component: %v", err)
	}
	path := filepath.Join(dir, "greet"+wacli.ComponentSuffix)
	if err := os.WriteFile(path, artifact, 0o644); err != nil {
		t.Fatal(err)
	}

	cmds, err := scan.Dir(dir)
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Name != "greet" {
		t.Fatalf("commands = %v", cmds)
	}
	if cmds[0].Schema().Summary != "greet summary" {
		t.Errorf("schema = %+v", cmds[0].Schema())
	}
}

func TestDirRejectsMissingMetadata(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "greet", nil)
	if _, err := scan.Dir(dir); err == nil {
		t.Fatal("expected error for component without metadata section")
	}
}

func TestDirRejectsNameMismatch(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "greet", simpleMeta("farewell"))
	if _, err := scan.Dir(dir); err == nil {
		t.Fatal("expected error for filename/metadata name mismatch")
	}
}

func TestDirRejectsInvalidName(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "Greet", simpleMeta("Greet"))
	if _, err := scan.Dir(dir); err == nil {
		t.Fatal("expected error for uppercase command name")
	}
}

func TestDirsRejectsDuplicate(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writePlugin(t, a, "greet", simpleMeta("greet"))
	writePlugin(t, b, "greet", simpleMeta("greet"))
	if _, err := scan.Dirs([]string{a, b}); err == nil {
		t.Fatal("expected error for command in two directories")
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"greet", "a", "my-command", "v2-sync"}
	invalid := []string{"", "Greet", "2fast", "-lead", "under_score", "dot.name"}
	for _, n := range valid {
		if !scan.ValidName(n) {
			t.Errorf("ValidName(%q) = false, want true", n)
		}
	}
	for _, n := range invalid {
		if scan.ValidName(n) {
			t.Errorf("ValidName(%q) = true, want false", n)
		}
	}
}
