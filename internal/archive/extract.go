package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pytron-dev/pytron/internal/logger"
)

// ErrInsecurePath is returned when an archive entry would resolve outside
// the extraction directory.
var ErrInsecurePath = errors.New("archive entry escapes extraction directory")

const (
	// scriptFileMode is applied to entries that look executable:
	// Python sources and extensionless files.
	scriptFileMode os.FileMode = 0o755

	// dataFileMode is applied to every other extracted entry.
	dataFileMode os.FileMode = 0o644
)

// ExtractToTemp creates a fresh uniquely named directory under baseDir and
// extracts the archive into it. The caller owns removal of the returned
// directory.
func ExtractToTemp(ctx context.Context, archivePath, baseDir string) (string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("create extraction base: %w", err)
	}

	dir, err := os.MkdirTemp(baseDir, "pytron_")
	if err != nil {
		return "", fmt.Errorf("create extraction directory: %w", err)
	}

	if err = Extract(ctx, archivePath, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	return dir, nil
}

// Extract unpacks every entry of the archive into destDir, preserving
// relative paths. Any entry that would resolve outside destDir aborts the
// extraction with ErrInsecurePath before anything is written outside.
func Extract(ctx context.Context, archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		// The stdlib reader flags unsafe entry names itself but stays
		// usable; fall through so the per-entry guard reports which
		// entry is hostile.
		if !errors.Is(err, zip.ErrInsecurePath) {
			return fmt.Errorf("open archive %s: %w", archivePath, err)
		}
	}

	defer func() {
		_ = reader.Close()
	}()

	logger.InfoKV(ctx, "Extracting archive", "archive", archivePath, "destination", destDir)

	for _, entry := range reader.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = extractEntry(entry, destDir); err != nil {
			return err
		}
	}

	return nil
}

// extractEntry writes a single archive entry below destDir.
func extractEntry(entry *zip.File, destDir string) error {
	target, err := secureJoin(destDir, entry.Name)
	if err != nil {
		return err
	}

	if entry.FileInfo().IsDir() {
		if err = os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", entry.Name, err)
		}

		return nil
	}

	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", entry.Name, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}

	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryMode(entry.Name))
	if err != nil {
		return fmt.Errorf("create file %s: %w", entry.Name, err)
	}

	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write file %s: %w", entry.Name, err)
	}

	if err = dst.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", entry.Name, err)
	}

	return nil
}

// secureJoin resolves an entry name below destDir, rejecting absolute names
// and any name that climbs out of the destination.
func secureJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("%s: %w", name, ErrInsecurePath)
	}

	target := filepath.Join(destDir, cleaned)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, ErrInsecurePath)
	}

	return target, nil
}

// entryMode picks permissions for an extracted entry. Python sources and
// extensionless files are made executable so entrypoints can run in place.
func entryMode(name string) os.FileMode {
	base := filepath.Base(filepath.FromSlash(name))
	if strings.HasSuffix(base, ".py") || !strings.Contains(base, ".") {
		return scriptFileMode
	}

	return dataFileMode
}
