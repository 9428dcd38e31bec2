// Package manifest handles the project build manifest (wacli.json) and
// the digest lockfile (wacli.lock) a build leaves behind.
package manifest
