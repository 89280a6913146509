package manifest

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Placeholder tokens recognised in the template.
const (
	PlaceholderVersion    = "{{version}}"
	PlaceholderURL        = "{{url}}"
	PlaceholderSHA256     = "{{sha256}}"
	PlaceholderIconSHA256 = "{{icon_sha256}}"
)

// pkgverPattern finds the pkgver assignment of a PKGBUILD, optionally quoted.
var pkgverPattern = regexp.MustCompile(`(?m)^pkgver=["']?([^"'\s#]+)`)

// Store reads and writes files by name.
type Store interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// Values are substituted into the template.
type Values struct {
	// Version replaces {{version}}.
	Version string
	// URL replaces {{url}}.
	URL string
	// SHA256 replaces {{sha256}}; the artifact digest.
	SHA256 string
	// IconSHA256 replaces {{icon_sha256}}; the icon digest.
	IconSHA256 string
}

// RenderString substitutes every placeholder in template. Each token is
// replaced in a single pass, so values that happen to contain a token are
// inserted verbatim.
func RenderString(template string, values Values) string {
	replacer := strings.NewReplacer(
		PlaceholderVersion, values.Version,
		PlaceholderURL, values.URL,
		PlaceholderSHA256, values.SHA256,
		PlaceholderIconSHA256, values.IconSHA256,
	)

	return replacer.Replace(template)
}

// Render reads templateName from store, substitutes values and writes the
// result to outputName. It returns the placeholders the template lacks.
func Render(store Store, templateName, outputName string, values Values) ([]string, error) {
	template, err := store.ReadFile(templateName)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	missing := MissingPlaceholders(string(template))

	if err = store.WriteFile(outputName, []byte(RenderString(string(template), values))); err != nil {
		return missing, fmt.Errorf("write manifest: %w", err)
	}

	return missing, nil
}

// MissingPlaceholders lists the tokens absent from template.
func MissingPlaceholders(template string) []string {
	var missing []string

	for _, token := range []string{
		PlaceholderVersion,
		PlaceholderURL,
		PlaceholderSHA256,
		PlaceholderIconSHA256,
	} {
		if !strings.Contains(template, token) {
			missing = append(missing, token)
		}
	}

	return missing
}

// CurrentVersion returns the pkgver of an existing manifest, or an empty
// string when the manifest does not exist or has no pkgver line.
func CurrentVersion(store Store, manifestName string) (string, error) {
	data, err := store.ReadFile(manifestName)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	match := pkgverPattern.FindSubmatch(data)
	if match == nil {
		return "", nil
	}

	return string(match[1]), nil
}
