// Package invocation splits the raw `run` argument vector into flags for
// the dependency manager, the target archive or script, and arguments for
// the executed script. Both groups commonly use leading dashes, so the
// first positional token (or an explicit `--`) is the only reliable
// boundary; the split is modeled as a small explicit state machine.
package invocation
