// Package scan discovers command plugins on disk. A plugin is a
// component file named <command>.component.wasm carrying a command
// metadata custom section; the filename and the embedded name must
// agree. Discovery never executes plugin code.
package scan
