package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/wacli"
	"github.com/wippyai/wacli/manifest"
	"github.com/wippyai/wacli/metadata"
	"github.com/wippyai/wacli/registry"
	"github.com/wippyai/wacli/scan"
	"github.com/wippyai/wacli/verify"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: wacli <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  init     write a starter wacli.json manifest")
	fmt.Fprintln(os.Stderr, "  build    discover command plugins and generate the registry")
	fmt.Fprintln(os.Stderr, "  check    verify an existing registry artifact")
	fmt.Fprintln(os.Stderr, "  inspect  show discovered command schemas (-i for TUI)")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "build":
		err = runBuild(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging wires a shared logger into every package that logs.
func setupLogging(verbose bool) {
	if !verbose {
		return
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return
	}
	registry.SetLogger(log)
	scan.SetLogger(log)
	verify.SetLogger(log)
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var (
		dir     = fs.String("dir", ".", "Project directory")
		name    = fs.String("name", "", "Application name")
		version = fs.String("version", "0.1.0", "Application version")
	)
	fs.Parse(args)

	if *name == "" {
		*name = filepath.Base(mustAbs(*dir))
	}
	m := &manifest.Manifest{
		App:         metadata.AppMeta{Name: *name, Version: *version},
		CommandDirs: []string{"commands"},
		Output:      "build",
		Verify:      string(verify.ModeStructural),
	}
	if err := m.Save(*dir); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", filepath.Join(*dir, manifest.FileName))
	return nil
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var (
		dir      = fs.String("dir", ".", "Project directory containing wacli.json")
		mode     = fs.String("verify", "", "Verification mode: off, structural, execute (overrides manifest)")
		strict   = fs.Bool("strict", false, "Treat shadowed aliases as errors")
		force    = fs.Bool("force", false, "Regenerate even when the lockfile is current")
		defaults = fs.String("defaults", "", "Directory holding a pre-built registry artifact (overrides manifest)")
		verbose  = fs.Bool("v", false, "Verbose logging")
	)
	fs.Parse(args)
	setupLogging(*verbose)

	ctx := context.Background()

	m, err := manifest.Load(*dir)
	if err != nil {
		return err
	}
	if *mode == "" {
		*mode = m.Verify
	}
	verifyMode, err := verify.ParseMode(*mode)
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(m.CommandDirs))
	for _, d := range m.CommandDirs {
		dirs = append(dirs, filepath.Join(*dir, d))
	}
	cmds, err := scan.Dirs(dirs)
	if err != nil {
		return err
	}

	output := filepath.Join(*dir, m.Output)
	plugins := make(map[string]string, len(cmds))
	for _, c := range cmds {
		plugins[c.Name] = c.Path
	}

	if !*force {
		if current, err := upToDate(output, plugins); err == nil && current {
			fmt.Printf("Registry up to date (%d commands)\n", len(cmds))
			return nil
		}
	}

	defaultsDir := m.DefaultsDir
	if *defaults != "" {
		defaultsDir = *defaults
	}
	if defaultsDir != "" {
		defaultsDir = filepath.Join(*dir, defaultsDir)
	}

	artifact, err := registry.Generate(ctx, registry.Options{
		App:           m.App,
		Commands:      scan.Schemas(cmds),
		StrictAliases: m.StrictAliases || *strict,
		Verify:        verifyMode,
		ScratchDir:    output,
		DefaultsDir:   defaultsDir,
	})
	if err != nil {
		return err
	}

	lock, err := manifest.NewLock(artifact, plugins)
	if err != nil {
		return err
	}
	if err := lock.Save(output); err != nil {
		return err
	}

	fmt.Printf("Generated %s (%d commands, %d bytes)\n",
		filepath.Join(output, wacli.RegistryArtifact), len(cmds), len(artifact))
	return nil
}

// upToDate reports whether the existing artifact and lockfile still
// match the plugin files on disk.
func upToDate(output string, plugins map[string]string) (bool, error) {
	lock, err := manifest.LoadLock(output)
	if err != nil || lock == nil {
		return false, err
	}
	artifact, err := os.ReadFile(filepath.Join(output, wacli.RegistryArtifact))
	if err != nil {
		return false, nil
	}
	fresh, err := manifest.NewLock(artifact, plugins)
	if err != nil {
		return false, err
	}
	return lock.Equal(fresh), nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	var (
		path    = fs.String("artifact", "", "Registry artifact path (default <dir>/build/registry.component.wasm)")
		dir     = fs.String("dir", ".", "Project directory")
		mode    = fs.String("mode", string(verify.ModeExecute), "Verification mode: structural, execute")
		verbose = fs.Bool("v", false, "Verbose logging")
	)
	fs.Parse(args)
	setupLogging(*verbose)

	var output string
	if *path == "" {
		out := "build"
		if m, err := manifest.Load(*dir); err == nil {
			out = m.Output
		}
		output = filepath.Join(*dir, out)
		*path = filepath.Join(output, wacli.RegistryArtifact)
	} else {
		output = filepath.Dir(*path)
	}
	verifyMode, err := verify.ParseMode(*mode)
	if err != nil {
		return err
	}

	artifact, err := os.ReadFile(*path)
	if err != nil {
		return err
	}
	if err := verify.Artifact(context.Background(), artifact, verifyMode); err != nil {
		return err
	}

	if lock, err := manifest.LoadLock(output); err != nil {
		return err
	} else if lock != nil && lock.Registry != manifest.Digest(artifact) {
		fmt.Printf("%s: verified, but the lockfile records a different build\n", *path)
		return nil
	}
	fmt.Printf("%s: ok (%s)\n", *path, verifyMode)
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var (
		dir         = fs.String("dir", "", "Commands directory to inspect (default from wacli.json)")
		interactive = fs.Bool("i", false, "Interactive schema browser")
		verbose     = fs.Bool("v", false, "Verbose logging")
	)
	fs.Parse(args)
	setupLogging(*verbose)

	dirs := []string{*dir}
	if *dir == "" {
		m, err := manifest.Load(".")
		if err != nil {
			return err
		}
		dirs = m.CommandDirs
	}
	cmds, err := scan.Dirs(dirs)
	if err != nil {
		return err
	}

	if *interactive {
		return runBrowser(cmds)
	}

	for _, c := range cmds {
		s := c.Schema()
		fmt.Printf("%s", s.Name)
		if len(s.Aliases) > 0 {
			fmt.Printf(" (aliases: %v)", s.Aliases)
		}
		if s.Version != "" {
			fmt.Printf(" v%s", s.Version)
		}
		fmt.Println()
		if s.Summary != "" {
			fmt.Printf("  %s\n", s.Summary)
		}
		for _, a := range s.Args {
			line := "  --" + a.Name
			if a.Short != nil {
				line += ", -" + *a.Short
			}
			if a.Required {
				line += " (required)"
			}
			if a.Help != nil {
				line += "  " + *a.Help
			}
			fmt.Println(line)
		}
	}
	return nil
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
