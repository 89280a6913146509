package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a maintenance run.
type Config struct {
	// WorkspaceDir is the recipe directory every file name is resolved against.
	WorkspaceDir string `yaml:"workspace_dir"`
	// EntryURL redirects to the newest versioned download.
	EntryURL string `yaml:"entry_url"`
	// TemplateFile is the manifest template with placeholder tokens.
	TemplateFile string `yaml:"template_file"`
	// ManifestFile is the rendered manifest.
	ManifestFile string `yaml:"manifest_file"`
	// SrcInfoFile receives the metadata printed by makepkg.
	SrcInfoFile string `yaml:"srcinfo_file"`
	// IconFile is the static icon whose checksum goes into the manifest.
	IconFile string `yaml:"icon_file"`
	// InstallFile is the install script referenced by the manifest.
	InstallFile string `yaml:"install_file"`
	// MakepkgCommand runs makepkg, optionally with leading arguments.
	MakepkgCommand string `yaml:"makepkg_command"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "lmstudio-pkgbuild.yaml"

	// DefaultEntryURL always redirects to the newest Linux x64 AppImage.
	DefaultEntryURL = "https://lmstudio.ai/download/latest/linux/x64"

	// DefaultWorkspaceDir is the current directory.
	DefaultWorkspaceDir = "."

	// DefaultTemplateFile is the default manifest template name.
	DefaultTemplateFile = "PKGBUILD.template"

	// DefaultManifestFile is the default rendered manifest name.
	DefaultManifestFile = "PKGBUILD"

	// DefaultSrcInfoFile is the default derived metadata file name.
	DefaultSrcInfoFile = ".SRCINFO"

	// DefaultIconFile is the default icon name.
	DefaultIconFile = "lmstudio.png"

	// DefaultInstallFile is the default install script name.
	DefaultInstallFile = "lmstudio-bin.install"

	// DefaultMakepkgCommand is the default makepkg executable.
	DefaultMakepkgCommand = "makepkg"

	// DefaultFilePermissions is the default file permission for settings files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadEntryScheme is returned when the entry URL is not http(s).
	errBadEntryScheme = errors.New("entry url must be an absolute http or https url")
	// errNotBaseName is returned when a recipe file name contains a directory.
	errNotBaseName = errors.New("must be a file name inside the workspace")
	// errSameFile is returned when an input and an output share a name.
	errSameFile = errors.New("input and output must differ")
)

// Default returns the settings used when no settings file exists.
func Default() *Config {
	return &Config{
		WorkspaceDir:   DefaultWorkspaceDir,
		EntryURL:       DefaultEntryURL,
		TemplateFile:   DefaultTemplateFile,
		ManifestFile:   DefaultManifestFile,
		SrcInfoFile:    DefaultSrcInfoFile,
		IconFile:       DefaultIconFile,
		InstallFile:    DefaultInstallFile,
		MakepkgCommand: DefaultMakepkgCommand,
	}
}

// Load reads configuration from the provided path and validates it.
// Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty fields with defaults and reports every invalid field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	var err error

	entry, parseErr := url.Parse(cfg.EntryURL)

	switch {
	case parseErr != nil:
		err = multierr.Append(err, fmt.Errorf("entry_url: %w", parseErr))
	case !entry.IsAbs() || entry.Host == "" || (entry.Scheme != "https" && entry.Scheme != "http"):
		err = multierr.Append(err, fmt.Errorf("entry_url %q: %w", cfg.EntryURL, errBadEntryScheme))
	}

	names := []struct {
		key, value string
	}{
		{"template_file", cfg.TemplateFile},
		{"manifest_file", cfg.ManifestFile},
		{"srcinfo_file", cfg.SrcInfoFile},
		{"icon_file", cfg.IconFile},
		{"install_file", cfg.InstallFile},
	}

	for _, name := range names {
		if filepath.Base(name.value) != name.value || name.value == ".." {
			err = multierr.Append(err, fmt.Errorf("%s %q: %w", name.key, name.value, errNotBaseName))
		}
	}

	if cfg.TemplateFile == cfg.ManifestFile {
		err = multierr.Append(err, fmt.Errorf("template_file and manifest_file: %w", errSameFile))
	}

	if cfg.ManifestFile == cfg.SrcInfoFile {
		err = multierr.Append(err, fmt.Errorf("manifest_file and srcinfo_file: %w", errSameFile))
	}

	return err
}

// applyDefaults replaces blank fields with their default values.
func applyDefaults(cfg *Config) {
	defaults := Default()

	for _, field := range []struct {
		value    *string
		fallback string
	}{
		{&cfg.WorkspaceDir, defaults.WorkspaceDir},
		{&cfg.EntryURL, defaults.EntryURL},
		{&cfg.TemplateFile, defaults.TemplateFile},
		{&cfg.ManifestFile, defaults.ManifestFile},
		{&cfg.SrcInfoFile, defaults.SrcInfoFile},
		{&cfg.IconFile, defaults.IconFile},
		{&cfg.InstallFile, defaults.InstallFile},
		{&cfg.MakepkgCommand, defaults.MakepkgCommand},
	} {
		*field.value = strings.TrimSpace(*field.value)
		if *field.value == "" {
			*field.value = field.fallback
		}
	}
}
