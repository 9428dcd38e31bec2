// Package wasm provides the small slice of WebAssembly binary plumbing the
// build pipeline needs: LEB128 codecs, a raw section walker over core
// modules, custom section lookup and append, and name-level decoding of
// import and export sections. Section payloads stay opaque byte slices
// unless a caller explicitly decodes them; the pipeline inspects and
// augments modules, it does not execute them.
package wasm
