package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pytron-dev/pytron/internal/ignore"
	"github.com/pytron-dev/pytron/internal/logger"
)

// ErrSymlinkCycle is returned when following symbolic links revisits a
// directory already on the walk. Silently skipping would hide unbounded
// archive growth, so packaging aborts instead.
var ErrSymlinkCycle = errors.New("symbolic link cycle detected")

// builder carries the state of one archive creation.
type builder struct {
	writer     *zip.Writer
	rules      *ignore.RuleSet
	sourceDir  string
	outputPath string
	// onPath holds the resolved directories of the current ancestor
	// chain. A revisit within the chain is a symlink cycle; two branches
	// sharing a link target are not.
	onPath map[string]struct{}
	// count is the number of file entries written so far.
	count int
}

// Create walks sourceDir and writes every file whose relative path is not
// excluded by rules into a zip archive at outputPath. Relative paths are
// preserved with forward slashes. It returns the number of entries written.
// Directories matching a rule are pruned without descending. Symbolic links
// are followed once; a link cycle aborts with ErrSymlinkCycle.
func Create(ctx context.Context, sourceDir, outputPath string, rules *ignore.RuleSet) (int, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return 0, fmt.Errorf("stat source directory: %w", err)
	}

	if !info.IsDir() {
		return 0, fmt.Errorf("source %s: %w", sourceDir, errNotADirectory)
	}

	outputAbs, err := filepath.Abs(outputPath)
	if err != nil {
		return 0, fmt.Errorf("resolve output path: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}

	b := &builder{
		writer:     zip.NewWriter(file),
		rules:      rules,
		sourceDir:  sourceDir,
		outputPath: outputAbs,
		onPath:     make(map[string]struct{}),
	}

	if _, err = b.pushDir(sourceDir); err == nil {
		err = b.walkDir(ctx, sourceDir, "")
	}

	if err != nil {
		_ = b.writer.Close()
		_ = file.Close()
		_ = os.Remove(outputPath)

		return 0, err
	}

	if err = b.writer.Close(); err != nil {
		_ = file.Close()
		return 0, fmt.Errorf("finalize archive: %w", err)
	}

	if err = file.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}

	return b.count, nil
}

var errNotADirectory = errors.New("not a directory")

// pushDir records the resolved path of a directory on the current ancestor
// chain and returns it so the caller can pop after the descent. Revisiting a
// directory already on the chain means a symlink cycle; revisiting one from
// a sibling branch does not.
func (b *builder) pushDir(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	if _, seen := b.onPath[resolved]; seen {
		return "", fmt.Errorf("%s: %w", dir, ErrSymlinkCycle)
	}

	b.onPath[resolved] = struct{}{}

	return resolved, nil
}

// walkDir visits dir, whose archive-relative slash path is relPrefix.
func (b *builder) walkDir(ctx context.Context, dir, relPrefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return err
		}

		relPath := entry.Name()
		if relPrefix != "" {
			relPath = relPrefix + "/" + entry.Name()
		}

		if b.rules.Match(relPath) {
			logger.DebugKV(ctx, "Ignoring", "path", relPath)
			continue
		}

		fullPath := filepath.Join(dir, entry.Name())

		info, err := os.Stat(fullPath) // Follows symlinks.
		if err != nil {
			return fmt.Errorf("stat %s: %w", fullPath, err)
		}

		switch {
		case info.IsDir():
			resolved, err := b.pushDir(fullPath)
			if err != nil {
				return err
			}

			err = b.walkDir(ctx, fullPath, relPath)
			delete(b.onPath, resolved)

			if err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err = b.addFile(ctx, fullPath, relPath); err != nil {
				return err
			}
		default:
			// Sockets, devices and the like cannot live in a zip.
			logger.DebugKV(ctx, "Skipping irregular file", "path", relPath)
		}
	}

	return nil
}

// addFile streams one file into the archive under its relative slash path.
func (b *builder) addFile(ctx context.Context, fullPath, relPath string) error {
	abs, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", fullPath, err)
	}

	// The archive being written must never package itself.
	if abs == b.outputPath {
		return nil
	}

	logger.DebugKV(ctx, "Adding", "path", relPath)

	entry, err := b.writer.Create(relPath)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", relPath, err)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", fullPath, err)
	}

	defer func() {
		_ = file.Close()
	}()

	if _, err = io.Copy(entry, file); err != nil {
		return fmt.Errorf("write entry %s: %w", relPath, err)
	}

	b.count++

	return nil
}
