// Package archive builds and unpacks project zip archives.
//
// Creation walks a source tree, filters it through an ignore rule set, and
// stores relative slash-separated paths. Extraction always targets a fresh
// directory and refuses entries that would resolve outside it.
package archive
