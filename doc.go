// Package wacli holds the shared contract constants of the wacli build
// pipeline: the custom section names, the registry interface version, and
// the artifact naming conventions the subpackages and downstream composers
// agree on.
//
// The pipeline itself lives in the subpackages:
//
//   - scan discovers and validates command plugins
//   - metadata models the embedded command schema payload
//   - registry compiles the dispatch registry component
//   - verify checks a generated artifact structurally or by execution
//   - manifest reads the build manifest and lockfile
//
// The cmd/wacli command ties them together.
package wacli
