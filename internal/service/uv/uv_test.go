package uv

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDownloadURLNamesPinnedVersion checks the release URL layout.
func TestDownloadURLNamesPinnedVersion(t *testing.T) {
	t.Parallel()

	url, err := DownloadURL("0.7.2")
	if err != nil {
		require.ErrorIs(t, err, ErrUnsupportedPlatform)
		t.Skipf("no uv release for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	require.Contains(t, url, "/0.7.2/")
	require.Contains(t, url, "astral-sh/uv/releases/download")

	if runtime.GOOS == "windows" {
		require.True(t, len(url) > 4 && url[len(url)-4:] == ".zip")
	} else {
		require.True(t, len(url) > 7 && url[len(url)-7:] == ".tar.gz")
	}
}

// TestBinaryPathPrefersDirectLocation checks home/uv wins over home/bin/uv.
func TestBinaryPathPrefersDirectLocation(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	direct := filepath.Join(home, executableName())

	// Nothing installed: the direct location is still the answer.
	require.Equal(t, direct, BinaryPath(home))
	require.False(t, IsInstalled(home))

	// Legacy bin location is honored when only it exists.
	legacy := filepath.Join(home, "bin", executableName())
	require.NoError(t, os.MkdirAll(filepath.Dir(legacy), 0o755))
	require.NoError(t, os.WriteFile(legacy, []byte("bin"), 0o755))
	require.Equal(t, legacy, BinaryPath(home))
	require.True(t, IsInstalled(home))

	// Direct location wins once present.
	require.NoError(t, os.WriteFile(direct, []byte("direct"), 0o755))
	require.Equal(t, direct, BinaryPath(home))
}

// TestExtractFromZipFindsBinary pulls the executable out of a zip asset.
func TestExtractFromZipFindsBinary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("uv-dist/" + executableName())
	require.NoError(t, err)
	_, err = entry.Write([]byte("fake binary"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	data, err := extractFromZip(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "fake binary", string(data))
}

// TestExtractFromZipMissingBinary reports a useless asset.
func TestExtractFromZipMissingBinary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("README.md")
	require.NoError(t, err)
	_, err = entry.Write([]byte("nothing here"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	_, err = extractFromZip(buf.Bytes())
	require.ErrorIs(t, err, errBinaryNotInAsset)
}

// TestExtractFromTarGzFindsBinary pulls the executable out of a tar.gz asset.
func TestExtractFromTarGzFindsBinary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	payload := []byte("fake binary")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "uv-dist/" + executableName(),
		Mode:     0o755,
		Size:     int64(len(payload)),
		Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	data, err := extractFromTarGz(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, string(payload), string(data))
}

// TestIsInstallRunningNow covers missing, fresh, and stale markers.
func TestIsInstallRunningNow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	home := t.TempDir()

	require.False(t, IsInstallRunningNow(ctx, home))

	// Fresh marker owned by this process counts as running.
	markerPath, err := writeMarker(home)
	require.NoError(t, err)
	require.True(t, IsInstallRunningNow(ctx, home))

	// Stale marker is cleaned up and no longer blocks.
	old := time.Now().Add(-2 * markerLifetime)
	require.NoError(t, os.Chtimes(markerPath, old, old))
	require.False(t, IsInstallRunningNow(ctx, home))
	_, err = os.Stat(markerPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestGetFileChecksum fingerprints file contents deterministically.
func TestGetFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0o600))

	first, err := GetFileChecksum(path)
	require.NoError(t, err)
	require.Len(t, first, DefaultChecksumFunction.Size())

	second, err := GetFileChecksum(path)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%x", first), fmt.Sprintf("%x", second))
}
