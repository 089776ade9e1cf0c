// Package runner implements the `run` workflow: split the raw argument
// vector into manager flags, target, and script arguments; extract archive
// targets into a scoped temporary directory; and execute the resolved
// script through uv, propagating its exit code.
package runner
