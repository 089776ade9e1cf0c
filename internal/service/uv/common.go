package uv

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/pytron-dev/pytron/internal/logger"

	// Ensure SHA512 is available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// MarkerFilename marks that an install is running right now to avoid
	// two processes racing on the same uv binary.
	MarkerFilename = "pytron-install-marker.bin"

	// DefaultFileMode is used for the installed uv binary.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to fingerprint the installed binary.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// releaseURLBase is where uv release archives are published.
	releaseURLBase = "https://github.com/astral-sh/uv/releases/download"

	// markerLifetime is the period after which a stale install marker is ignored.
	markerLifetime = 2 * time.Minute
)

var (
	errHashUnavailable = errors.New("hash function unavailable")

	// ErrUnsupportedPlatform is returned when no uv release exists for this OS/arch.
	ErrUnsupportedPlatform = errors.New("no uv release for this platform")
)

// executableName returns the uv binary name for the current platform.
func executableName() string {
	if runtime.GOOS == "windows" {
		return "uv.exe"
	}

	return "uv"
}

// BinaryPath returns the location of the uv binary inside the pytron home.
// The install script drops it directly into the home; older installations
// used a bin subdirectory, which is honored when present.
func BinaryPath(home string) string {
	direct := filepath.Join(home, executableName())
	if _, err := os.Stat(direct); err == nil {
		return direct
	}

	legacy := filepath.Join(home, "bin", executableName())
	if _, err := os.Stat(legacy); err == nil {
		return legacy
	}

	return direct
}

// IsInstalled reports whether a uv binary exists in the pytron home.
func IsInstalled(home string) bool {
	_, err := os.Stat(BinaryPath(home))
	return err == nil
}

// releaseAsset maps the current platform to the uv release asset name.
// Windows releases ship as zip, everything else as tar.gz.
func releaseAsset() (string, error) {
	arch, ok := map[string]string{
		"amd64": "x86_64",
		"arm64": "aarch64",
	}[runtime.GOARCH]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", runtime.GOOS, runtime.GOARCH, ErrUnsupportedPlatform)
	}

	switch runtime.GOOS {
	case "linux":
		return fmt.Sprintf("uv-%s-unknown-linux-gnu.tar.gz", arch), nil
	case "darwin":
		return fmt.Sprintf("uv-%s-apple-darwin.tar.gz", arch), nil
	case "windows":
		return fmt.Sprintf("uv-%s-pc-windows-msvc.zip", arch), nil
	default:
		return "", fmt.Errorf("%s/%s: %w", runtime.GOOS, runtime.GOARCH, ErrUnsupportedPlatform)
	}
}

// DownloadURL returns the release archive URL for the requested uv version
// on the current platform.
func DownloadURL(version string) (string, error) {
	asset, err := releaseAsset()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/%s", releaseURLBase, version, asset), nil
}

// GetFileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func GetFileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// IsInstallRunningNow checks presence of an install marker in the home and
// attempts recovery when it looks stale (old mtime or owning process gone).
func IsInstallRunningNow(ctx context.Context, home string) bool {
	markerPath := filepath.Join(home, MarkerFilename)

	fileInfo, err := os.Stat(markerPath)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	if err != nil {
		logger.Infof(ctx, "Unable to read install marker: %v", err)
		return false
	}

	if time.Since(fileInfo.ModTime()) <= markerLifetime && markerOwnerAlive(markerPath) {
		return true
	}

	logger.Info(ctx, "The install marker is stale, attempting cleanup")

	if err = os.Remove(markerPath); err != nil {
		return true
	}

	return false
}

// markerOwnerAlive reports whether the process that wrote the marker still runs.
// An unreadable or malformed marker counts as alive to stay on the safe side.
func markerOwnerAlive(markerPath string) bool {
	contents, err := os.ReadFile(filepath.Clean(markerPath))
	if err != nil {
		return true
	}

	var pid int
	if _, err = fmt.Sscanf(string(contents), "%d", &pid); err != nil {
		return true
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}

// writeMarker records this process as the running installer.
func writeMarker(home string) (string, error) {
	markerPath := filepath.Join(home, MarkerFilename)

	if err := os.WriteFile(markerPath, fmt.Appendf(nil, "%d", os.Getpid()), 0o600); err != nil {
		return "", fmt.Errorf("write install marker: %w", err)
	}

	return markerPath, nil
}
