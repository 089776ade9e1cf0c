// Package packer implements the `zip` workflow: assemble the ignore rule
// set, walk the project into an archive, and optionally sign the result.
package packer
