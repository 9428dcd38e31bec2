// Package wat compiles WebAssembly text format into binary modules.
//
// The dialect is the one the registry code generator emits, not the full
// text format:
//
//   - function imports with inline or named type uses
//   - i32-only functions with named params and locals
//   - folded and flat instruction forms, including block/loop/if
//   - the i32 arithmetic, comparison, load/store and control subset
//   - one memory, mutable i32 globals, exports, active data segments
//   - string literals with two-digit hex escapes
//
// Anything outside that subset is rejected with a positioned error.
package wat
