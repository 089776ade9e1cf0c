// Package uv locates the uv dependency manager inside the pytron home and
// installs the release pinned in settings when it is missing. Downloads are
// guarded by an install marker so concurrent pytron processes do not race
// on the same binary; the marker is recovered when its owner died.
package uv
