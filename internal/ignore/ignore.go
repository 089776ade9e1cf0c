package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// RuleSet is an ordered list of glob patterns. A relative path is excluded
// when it matches any pattern in the set.
type RuleSet struct {
	patterns []string
}

// GitignoreFilename is the per-project ignore file honored by the packager.
const GitignoreFilename = ".gitignore"

// DefaultPatterns returns the built-in exclusions: common Python build
// artifacts, virtual environments, and version-control metadata.
func DefaultPatterns() []string {
	return []string{
		".git",
		".hg",
		".svn",
		"__pycache__",
		"*.pyc",
		"*.pyo",
		".venv",
		"venv",
		".mypy_cache",
		".pytest_cache",
		".ruff_cache",
		"*.egg-info",
	}
}

// NewRuleSet creates a rule set from the provided patterns, preserving order.
func NewRuleSet(patterns ...string) *RuleSet {
	rs := &RuleSet{}
	rs.Add(patterns...)

	return rs
}

// Add appends patterns to the set. Empty patterns and comments are skipped,
// trailing slashes (gitignore directory syntax) are trimmed.
func (rs *RuleSet) Add(patterns ...string) {
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}

		p = strings.TrimSuffix(p, "/")
		p = strings.TrimPrefix(p, "/")

		rs.patterns = append(rs.patterns, p)
	}
}

// Patterns returns the active patterns in order.
func (rs *RuleSet) Patterns() []string {
	return append([]string(nil), rs.patterns...)
}

// Match reports whether the slash-separated relative path is excluded.
// A pattern containing a path separator is matched against the whole
// relative path; any other pattern is matched against each path segment.
// Matching is case-sensitive.
func (rs *RuleSet) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	segments := strings.Split(relPath, "/")

	for _, pattern := range rs.patterns {
		if strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
				return true
			}

			continue
		}

		for _, segment := range segments {
			if ok, err := doublestar.Match(pattern, segment); err == nil && ok {
				return true
			}
		}
	}

	return false
}

// LoadGitignore reads the .gitignore file in dir and returns its patterns.
// A missing file yields an empty list.
func LoadGitignore(dir string) ([]string, error) {
	file, err := os.Open(filepath.Join(dir, GitignoreFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("open %s: %w", GitignoreFilename, err)
	}

	defer func() {
		_ = file.Close()
	}()

	var patterns []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		patterns = append(patterns, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", GitignoreFilename, err)
	}

	return patterns, nil
}

// Build assembles the active rule set for packaging sourceDir:
// built-in defaults, then .gitignore contents, then settings extras, then
// user patterns from the command line. Passing a single empty user pattern
// drops the built-in defaults (the other sources still apply).
func Build(sourceDir string, userPatterns, extraPatterns []string) (*RuleSet, error) {
	rs := NewRuleSet()

	dropDefaults := len(userPatterns) == 1 && userPatterns[0] == ""
	if !dropDefaults {
		rs.Add(DefaultPatterns()...)
	}

	gitignorePatterns, err := LoadGitignore(sourceDir)
	if err != nil {
		return nil, err
	}

	rs.Add(gitignorePatterns...)
	rs.Add(extraPatterns...)

	if !dropDefaults {
		rs.Add(userPatterns...)
	}

	return rs, nil
}
