package release

import (
	"fmt"
	"net/url"
	"path"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// filenamePattern matches <product>-<major>.<minor>.<patch>-[<release>-]x64.<ext>.
// Only the three-part version is captured; the release number is discarded.
var filenamePattern = regexp.MustCompile(`^.+-(\d+\.\d+\.\d+)-(?:\d+-)?x64\.\w+$`)

// Release describes the upstream artifact the PKGBUILD is rendered for.
type Release struct {
	// URL is the final download URL obtained after following redirects.
	URL string
	// Filename is the last path segment of URL.
	Filename string
	// Version is the X.Y.Z version parsed from Filename.
	Version string
}

// New builds a Release from the resolved download URL.
func New(finalURL string) (*Release, error) {
	filename, err := FilenameFromURL(finalURL)
	if err != nil {
		return nil, err
	}

	ver, err := ExtractVersion(filename)
	if err != nil {
		return nil, err
	}

	return &Release{
		URL:      finalURL,
		Filename: filename,
		Version:  ver,
	}, nil
}

// FilenameFromURL returns the last segment of the URL path.
// Query strings and fragments are ignored.
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", &PatternMismatchError{Filename: u.Path}
	}

	return name, nil
}

// ExtractVersion returns the X.Y.Z version carried by filename.
// It fails with a *PatternMismatchError instead of returning an empty string.
func ExtractVersion(filename string) (string, error) {
	match := filenamePattern.FindStringSubmatch(filename)
	if match == nil {
		return "", &PatternMismatchError{Filename: filename}
	}

	return match[1], nil
}

// Compare returns -1, 0 or 1 depending on whether next is older than,
// equal to or newer than previous.
func Compare(previous, next string) (int, error) {
	prev, err := semver.NewVersion(previous)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", previous, err)
	}

	cur, err := semver.NewVersion(next)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", next, err)
	}

	return cur.Compare(prev), nil
}

// Checksums holds the hex digests rendered into the PKGBUILD.
type Checksums struct {
	// Artifact is the SHA-256 of the downloaded AppImage.
	Artifact string
	// Icon is the SHA-256 of the static icon shipped with the recipe.
	Icon string
}

// SumsLine renders the sha256sums array. The trailing SKIP belongs to the
// locally managed .desktop file.
func (c Checksums) SumsLine() string {
	return fmt.Sprintf("('%s' '%s' 'SKIP')", c.Artifact, c.Icon)
}
