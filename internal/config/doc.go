// Package config resolves the pytron home directory and loads the optional
// YAML settings file stored inside it. Settings pin the uv release to
// download, the conventional archive and entrypoint names used by `run`,
// and extra ignore patterns applied by `zip`. A missing settings file means
// defaults; nothing is written unless the user saves settings explicitly.
package config
