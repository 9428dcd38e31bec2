// Package registry compiles discovered command schemas into a registry
// component: a WebAssembly core module exporting list-schemas,
// get-app-meta, and run, wrapped as a component with its interface
// metadata bound into a custom section.
//
// Generation is a pure function of its input. The pipeline interns every
// referenced string into one table, derives canonical ABI layouts from a
// single record table, builds typed instruction streams against those
// layouts, renders them into a fixed module template, compiles the text
// to binary, and wraps the result. No command code is ever executed;
// dispatch is compiled from names alone.
package registry
