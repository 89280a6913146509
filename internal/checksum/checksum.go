// Package checksum computes the digests rendered into the PKGBUILD.
package checksum

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/lmstudio-pkgbuild/internal/domain/release"

	// Ensure SHA256 is available for checksum calculation.
	_ "crypto/sha256"
)

const (
	// Algorithm is the hash makepkg expects in the sha256sums array.
	Algorithm crypto.Hash = crypto.SHA256

	// BlockSize is the size of a single read from the hashed file.
	BlockSize = 4096
)

var errHashUnavailable = errors.New("hash function unavailable")

// File returns the lowercase hex digest of the file at path.
// The file is read in BlockSize blocks, so its size does not affect memory use.
func File(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", release.ErrFilesystem, path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("%w: hash %s: %w", release.ErrFilesystem, path, err)
	}

	return sum, nil
}

// Reader returns the lowercase hex digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	if !Algorithm.Available() {
		return "", errHashUnavailable
	}

	var (
		hasher = Algorithm.New()
		block  = make([]byte, BlockSize)
	)

	for {
		n, err := r.Read(block)
		if n > 0 {
			// hash.Hash never returns an error from Write.
			_, _ = hasher.Write(block[:n])
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
