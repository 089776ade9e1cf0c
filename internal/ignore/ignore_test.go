package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMatchSegments checks segment-level matching for plain patterns.
func TestMatchSegments(t *testing.T) {
	t.Parallel()

	rs := NewRuleSet("__pycache__", "*.pyc", ".git")

	require.True(t, rs.Match("__pycache__/mod.cpython-312.pyc"))
	require.True(t, rs.Match("pkg/sub/__pycache__/x.bin"))
	require.True(t, rs.Match("pkg/module.pyc"))
	require.True(t, rs.Match(".git/config"))
	require.False(t, rs.Match("pkg/module.py"))
	require.False(t, rs.Match("docs/readme.md"))
}

// TestMatchFullPathPatterns checks that patterns with separators match whole paths.
func TestMatchFullPathPatterns(t *testing.T) {
	t.Parallel()

	rs := NewRuleSet("build/output", "data/**/*.csv")

	require.True(t, rs.Match("build/output"))
	require.True(t, rs.Match("data/raw/2024/metrics.csv"))
	require.False(t, rs.Match("output"))
	require.False(t, rs.Match("data/raw/metrics.json"))
}

// TestMatchIsCaseSensitive verifies the case-sensitivity policy.
func TestMatchIsCaseSensitive(t *testing.T) {
	t.Parallel()

	rs := NewRuleSet("*.PYC")
	require.True(t, rs.Match("a.PYC"))
	require.False(t, rs.Match("a.pyc"))
}

// TestAddSkipsCommentsAndBlanks checks that .gitignore noise does not become a rule.
func TestAddSkipsCommentsAndBlanks(t *testing.T) {
	t.Parallel()

	rs := NewRuleSet("# comment", "", "  ", "dist/")
	require.Equal(t, []string{"dist"}, rs.Patterns())
	require.True(t, rs.Match("dist/wheel.whl"))
}

// TestLoadGitignore reads patterns from a project .gitignore.
func TestLoadGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	contents := "# build artifacts\n*.log\n\nnode_modules/\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, GitignoreFilename), []byte(contents), 0o600))

	patterns, err := LoadGitignore(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"*.log", "node_modules/"}, patterns)
}

// TestLoadGitignoreMissing treats a missing file as no patterns.
func TestLoadGitignoreMissing(t *testing.T) {
	t.Parallel()

	patterns, err := LoadGitignore(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, patterns)
}

// TestBuildAppendsUserPatterns ensures user patterns extend the defaults.
func TestBuildAppendsUserPatterns(t *testing.T) {
	t.Parallel()

	rs, err := Build(t.TempDir(), []string{"*.secret"}, []string{"scratch"})
	require.NoError(t, err)

	require.True(t, rs.Match("__pycache__/x.pyc"))
	require.True(t, rs.Match("keys/api.secret"))
	require.True(t, rs.Match("scratch/notes.txt"))
}

// TestBuildEmptyPatternDropsDefaults ensures a single empty pattern clears the built-ins.
func TestBuildEmptyPatternDropsDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, GitignoreFilename), []byte("*.tmp\n"), 0o600))

	rs, err := Build(dir, []string{""}, nil)
	require.NoError(t, err)

	// Defaults are gone, .gitignore still applies.
	require.False(t, rs.Match("__pycache__/x.pyc"))
	require.False(t, rs.Match(".git/config"))
	require.True(t, rs.Match("cache/session.tmp"))
}
