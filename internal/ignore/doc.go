// Package ignore decides which files stay out of a project archive.
//
// Rules are ordered glob patterns: built-in defaults for Python artifacts
// and VCS metadata, the project's .gitignore, extras from settings, and
// user-supplied patterns. User patterns append to the defaults; a single
// empty pattern replaces them.
package ignore
