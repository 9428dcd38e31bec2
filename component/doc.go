// Package component reads and writes the thin slice of the component
// binary format the build pipeline touches: wrapping a generated core
// module as a component, walking top-level sections, and decoding
// component-level custom sections and export names. It deliberately does
// not resolve component type graphs; plugins are inspected by name, not
// instantiated.
package component
