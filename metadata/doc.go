// Package metadata models the command metadata payload that wacli plugins
// embed in the wacli:cli/command-metadata@1 custom section: a format-version
// envelope around a minimal identity block and an optional full command
// schema (arguments, aliases, examples). JSON field names are kebab-case to
// match the WIT naming of the same records.
package metadata
