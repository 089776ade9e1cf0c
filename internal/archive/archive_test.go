package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pytron-dev/pytron/internal/ignore"
)

// writeTree creates files under dir given relative path -> contents.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for rel, contents := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
}

// entryNames lists the entry names inside a zip archive, sorted.
func entryNames(t *testing.T, path string) []string {
	t.Helper()

	reader, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	var names []string
	for _, f := range reader.File {
		names = append(names, f.Name)
	}

	sort.Strings(names)

	return names
}

// TestCreateFiltersIgnoredPaths verifies inclusion/exclusion and path preservation.
func TestCreateFiltersIgnoredPaths(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"main.py":                  "print('hi')",
		"pkg/util.py":              "x = 1",
		"pkg/__pycache__/util.pyc": "binary",
		".git/config":              "[core]",
		"requirements.txt":         "requests",
	})

	out := filepath.Join(t.TempDir(), "out.zip")
	rules := ignore.NewRuleSet(ignore.DefaultPatterns()...)

	count, err := Create(context.Background(), src, out, rules)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	require.Equal(t,
		[]string{"main.py", "pkg/util.py", "requirements.txt"},
		entryNames(t, out))
}

// TestCreateSkipsOutputArchive ensures the archive never packages itself.
func TestCreateSkipsOutputArchive(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeTree(t, src, map[string]string{"main.py": "print('hi')"})

	out := filepath.Join(src, "robot.zip")

	_, err := Create(context.Background(), src, out, ignore.NewRuleSet())
	require.NoError(t, err)
	require.Equal(t, []string{"main.py"}, entryNames(t, out))
}

// TestCreateMissingSourceFails ensures a missing source directory is an error.
func TestCreateMissingSourceFails(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out.zip")
	_, err := Create(context.Background(), filepath.Join(t.TempDir(), "nope"), out, ignore.NewRuleSet())
	require.Error(t, err)
}

// TestCreateSymlinkCycleFails ensures a cyclic symlink aborts packaging.
func TestCreateSymlinkCycleFails(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	src := t.TempDir()
	writeTree(t, src, map[string]string{"sub/file.txt": "data"})
	require.NoError(t, os.Symlink(src, filepath.Join(src, "sub", "loop")))

	out := filepath.Join(t.TempDir(), "out.zip")

	_, err := Create(context.Background(), src, out, ignore.NewRuleSet())
	require.ErrorIs(t, err, ErrSymlinkCycle)
}

// TestCreateSharedSymlinkTarget ensures two sibling links to the same
// directory package fine; only a link back to an ancestor is a cycle.
func TestCreateSharedSymlinkTarget(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	src := t.TempDir()
	writeTree(t, src, map[string]string{"shared/data.txt": "data"})
	require.NoError(t, os.Symlink(filepath.Join(src, "shared"), filepath.Join(src, "link_a")))
	require.NoError(t, os.Symlink(filepath.Join(src, "shared"), filepath.Join(src, "link_b")))

	out := filepath.Join(t.TempDir(), "out.zip")

	count, err := Create(context.Background(), src, out, ignore.NewRuleSet())
	require.NoError(t, err)
	require.Equal(t, 3, count)

	require.Equal(t,
		[]string{"link_a/data.txt", "link_b/data.txt", "shared/data.txt"},
		entryNames(t, out))
}

// TestExtractRoundtrip checks archive -> extract -> re-archive stability.
func TestExtractRoundtrip(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	files := map[string]string{
		"main.py":        "print('hi')",
		"pkg/util.py":    "x = 1",
		"data/notes.txt": "hello",
	}
	writeTree(t, src, files)

	first := filepath.Join(t.TempDir(), "first.zip")
	_, err := Create(context.Background(), src, first, ignore.NewRuleSet())
	require.NoError(t, err)

	extracted, err := ExtractToTemp(context.Background(), first, t.TempDir())
	require.NoError(t, err)

	for rel, contents := range files {
		data, readErr := os.ReadFile(filepath.Join(extracted, filepath.FromSlash(rel)))
		require.NoError(t, readErr)
		require.Equal(t, contents, string(data))
	}

	second := filepath.Join(t.TempDir(), "second.zip")
	_, err = Create(context.Background(), extracted, second, ignore.NewRuleSet())
	require.NoError(t, err)

	require.Equal(t, entryNames(t, first), entryNames(t, second))
}

// TestExtractSetsScriptPermissions checks the executable bit policy.
func TestExtractSetsScriptPermissions(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"main.py":   "print('hi')",
		"Makefile":  "all:",
		"notes.txt": "hello",
	})

	out := filepath.Join(t.TempDir(), "out.zip")
	_, err := Create(context.Background(), src, out, ignore.NewRuleSet())
	require.NoError(t, err)

	extracted, err := ExtractToTemp(context.Background(), out, t.TempDir())
	require.NoError(t, err)

	pyInfo, err := os.Stat(filepath.Join(extracted, "main.py"))
	require.NoError(t, err)
	require.Equal(t, scriptFileMode, pyInfo.Mode().Perm())

	txtInfo, err := os.Stat(filepath.Join(extracted, "notes.txt"))
	require.NoError(t, err)
	require.Equal(t, dataFileMode, txtInfo.Mode().Perm())
}

// TestExtractRejectsTraversal ensures a crafted entry cannot escape the destination.
func TestExtractRejectsTraversal(t *testing.T) {
	t.Parallel()

	malicious := filepath.Join(t.TempDir(), "evil.zip")

	file, err := os.Create(malicious)
	require.NoError(t, err)

	writer := zip.NewWriter(file)
	entry, err := writer.CreateHeader(&zip.FileHeader{Name: "../evil.txt"})
	require.NoError(t, err)
	_, err = entry.Write([]byte("escape"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, file.Close())

	parent := t.TempDir()
	dest := filepath.Join(parent, "dest")
	require.NoError(t, os.Mkdir(dest, 0o755))

	err = Extract(context.Background(), malicious, dest)
	require.ErrorIs(t, err, ErrInsecurePath)

	// Nothing escaped.
	_, err = os.Stat(filepath.Join(parent, "evil.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
