// Package uvstate persists a small JSON record of the uv binary installed
// in the pytron home, so a pinned version change in settings can trigger a
// reinstall without probing the binary itself.
package uvstate
