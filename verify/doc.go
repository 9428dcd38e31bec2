// Package verify checks assembled registry artifacts.
//
// Structural verification decodes the component and its embedded core
// module and confirms the expected shape: the bound interface metadata,
// the exported entry points, and imports confined to per-command
// namespaces. Execute verification goes further and instantiates the
// module under wazero with stubbed command imports, driving the exports
// to confirm dispatch actually works before the artifact is written
// anywhere.
package verify
