package uv

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/pytron-dev/pytron/internal/config"
	"github.com/pytron-dev/pytron/internal/logger"
	"github.com/pytron-dev/pytron/internal/repository/uvstate"
)

var (
	errInstallInProgress = errors.New("another uv install is running")
	errBadHTTPStatus     = errors.New("unexpected http status")
	errBinaryNotInAsset  = errors.New("uv binary not found in release archive")
)

// Ensure returns the path to a usable uv binary, downloading and installing
// the release pinned in settings when none is present. An existing binary
// with no recorded state is trusted as a manual install; a recorded state
// with a different version triggers a reinstall.
func Ensure(ctx context.Context, cfg *config.Config) (string, error) {
	home := config.Home()
	binaryPath := BinaryPath(home)
	repo := uvstate.NewFileRepository(filepath.Join(home, uvstate.Filename))

	if IsInstalled(home) {
		state, err := repo.Load(ctx)
		if errors.Is(err, uvstate.ErrNotFound) || (err == nil && state.Version == cfg.UVVersion) {
			return binaryPath, nil
		}

		if err != nil {
			return "", err
		}

		logger.InfoKV(ctx, "Installed uv version differs from settings, reinstalling",
			"installed", state.Version, "pinned", cfg.UVVersion)
	} else {
		logger.InfoKV(ctx, "uv not found, downloading", "version", cfg.UVVersion)
	}

	if err := install(ctx, home, binaryPath, cfg); err != nil {
		return "", err
	}

	checksum, err := GetFileChecksum(binaryPath)
	if err != nil {
		return "", fmt.Errorf("fingerprint installed uv: %w", err)
	}

	err = repo.Save(ctx, &uvstate.State{
		Version:     cfg.UVVersion,
		Checksum:    base64.StdEncoding.EncodeToString(checksum),
		InstalledAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	return binaryPath, nil
}

// install downloads the release archive and atomically replaces the target binary.
func install(ctx context.Context, home, binaryPath string, cfg *config.Config) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("create pytron home: %w", err)
	}

	if IsInstallRunningNow(ctx, home) {
		return errInstallInProgress
	}

	markerPath, err := writeMarker(home)
	if err != nil {
		return err
	}

	defer func() {
		_ = os.Remove(markerPath)
	}()

	downloadURL, err := DownloadURL(cfg.UVVersion)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Downloading uv", "url", downloadURL)

	archiveData, err := fetch(ctx, downloadURL, cfg.DownloadTimeout)
	if err != nil {
		return err
	}

	binaryData, err := extractBinary(downloadURL, archiveData)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installing uv", "path", binaryPath)

	options := goupdate.Options{
		TargetPath: binaryPath,
		TargetMode: DefaultFileMode,
	}
	if err = goupdate.Apply(bytes.NewReader(binaryData), options); err != nil {
		return fmt.Errorf("apply uv binary: %w", err)
	}

	// go-update keeps the previous binary around; drop it.
	if _, err = os.Stat(binaryPath + ".old"); err == nil {
		_ = os.Remove(binaryPath + ".old")
	}

	return nil
}

// fetch downloads the release archive into memory.
func fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download uv: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", url, response.Status, errBadHTTPStatus)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read uv download: %w", err)
	}

	return data, nil
}

// extractBinary pulls the uv executable out of a release archive,
// zip or gzipped tar depending on the asset name.
func extractBinary(assetURL string, archiveData []byte) ([]byte, error) {
	if strings.HasSuffix(assetURL, ".zip") {
		return extractFromZip(archiveData)
	}

	return extractFromTarGz(archiveData)
}

// extractFromZip finds the uv binary inside a zip release asset.
func extractFromZip(archiveData []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archiveData), int64(len(archiveData)))
	if err != nil {
		return nil, fmt.Errorf("open release zip: %w", err)
	}

	wanted := executableName()

	for _, entry := range reader.File {
		if filepath.Base(filepath.FromSlash(entry.Name)) != wanted {
			continue
		}

		src, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open release entry: %w", err)
		}

		data, err := io.ReadAll(src)
		_ = src.Close()

		if err != nil {
			return nil, fmt.Errorf("read release entry: %w", err)
		}

		return data, nil
	}

	return nil, errBinaryNotInAsset
}

// extractFromTarGz finds the uv binary inside a tar.gz release asset.
func extractFromTarGz(archiveData []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archiveData))
	if err != nil {
		return nil, fmt.Errorf("open release tarball: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	wanted := executableName()
	reader := tar.NewReader(gz)

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil, errBinaryNotInAsset
		}

		if err != nil {
			return nil, fmt.Errorf("read release tarball: %w", err)
		}

		if header.Typeflag != tar.TypeReg || filepath.Base(filepath.FromSlash(header.Name)) != wanted {
			continue
		}

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read release entry: %w", err)
		}

		return data, nil
	}
}
