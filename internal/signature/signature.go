package signature

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrAlreadySigned is returned when an archive already carries the trailer.
	ErrAlreadySigned = errors.New("archive already carries a signature trailer")
	// ErrNotSigned is returned when the expected trailer marker is absent.
	ErrNotSigned = errors.New("archive does not carry a signature trailer")
	// ErrVerificationFailed is returned when the trailer signature does not
	// match the archive contents for the given public key.
	ErrVerificationFailed = errors.New("signature verification failed")
	// errBadPublicKey is returned when the key file has the wrong size.
	errBadPublicKey = errors.New("public key file must hold a raw 32-byte ed25519 key")
)

// marker precedes the signature at the end of a signed archive. The zip
// end-of-central-directory scan tolerates the trailer, so signed archives
// stay readable.
var marker = []byte{0x05, 0x04, 0x07, 0x07}

// trailerSize is the number of bytes appended to a signed archive.
var trailerSize = len(marker) + ed25519.SignatureSize

// KeyPathFor returns the sidecar public key path for an archive:
// the archive path with its extension replaced by ".key".
func KeyPathFor(archivePath string) string {
	ext := filepath.Ext(archivePath)
	return strings.TrimSuffix(archivePath, ext) + ".key"
}

// Sign appends a marker and an ed25519 signature of the archive bytes to the
// archive file and writes the raw public key next to it. The key path is
// returned. Signing an already signed archive fails with ErrAlreadySigned.
func Sign(archivePath string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(archivePath))
	if err != nil {
		return "", fmt.Errorf("read archive: %w", err)
	}

	if hasTrailer(contents) {
		return "", fmt.Errorf("%s: %w", archivePath, ErrAlreadySigned)
	}

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate keypair: %w", err)
	}

	signed := append(contents, marker...)
	signed = append(signed, ed25519.Sign(private, signed)...)

	if err = os.WriteFile(archivePath, signed, 0o644); err != nil {
		return "", fmt.Errorf("write signed archive: %w", err)
	}

	keyPath := KeyPathFor(archivePath)
	if err = os.WriteFile(keyPath, public, 0o644); err != nil {
		return "", fmt.Errorf("write public key: %w", err)
	}

	return keyPath, nil
}

// Verify checks the trailer signature of the archive against the raw
// ed25519 public key stored at keyPath.
func Verify(archivePath, keyPath string) error {
	contents, err := os.ReadFile(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	if !hasTrailer(contents) {
		return fmt.Errorf("%s: %w", archivePath, ErrNotSigned)
	}

	keyBytes, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}

	if len(keyBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("%s: %w", keyPath, errBadPublicKey)
	}

	// The signature covers everything before it, marker included.
	data := contents[:len(contents)-ed25519.SignatureSize]
	sig := contents[len(contents)-ed25519.SignatureSize:]

	if !ed25519.Verify(ed25519.PublicKey(keyBytes), data, sig) {
		return fmt.Errorf("%s: %w", archivePath, ErrVerificationFailed)
	}

	return nil
}

// hasTrailer reports whether the file bytes end in marker + signature.
func hasTrailer(contents []byte) bool {
	if len(contents) < trailerSize {
		return false
	}

	markerStart := len(contents) - trailerSize

	return bytes.Equal(contents[markerStart:markerStart+len(marker)], marker)
}
