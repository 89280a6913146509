package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

// TestValidate_FillsDefaults checks that an empty config becomes the default one.
func TestValidate_FillsDefaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, Default(), cfg)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestValidate_ReportsEveryProblem aggregates all invalid fields into one error.
func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		EntryURL:     "ftp://lmstudio.ai/download",
		TemplateFile: "PKGBUILD",
		ManifestFile: "PKGBUILD",
		IconFile:     "../lmstudio.png",
	}

	err := Validate(cfg)
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)
	require.ErrorIs(t, err, errBadEntryScheme)
	require.ErrorIs(t, err, errSameFile)
	require.ErrorIs(t, err, errNotBaseName)
}

// TestValidate_EntryURL accepts http(s) and rejects relative or malformed URLs.
func TestValidate_EntryURL(t *testing.T) {
	t.Parallel()

	for _, good := range []string{DefaultEntryURL, "http://127.0.0.1:8080/download/latest/linux/x64"} {
		cfg := &Config{EntryURL: good}
		require.NoError(t, Validate(cfg), good)
	}

	for _, bad := range []string{"/download/latest", "https://", "http://[::1"} {
		cfg := &Config{EntryURL: bad}
		require.Error(t, Validate(cfg), bad)
	}
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := Default()
	cfg.WorkspaceDir = "/home/builder/aur/lmstudio-bin"
	cfg.MakepkgCommand = "sudo -u builder makepkg"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_PartialFileKeepsDefaults fills fields missing from the YAML.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workspace_dir: /srv/aur/lmstudio-bin\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/aur/lmstudio-bin", cfg.WorkspaceDir)
	require.Equal(t, DefaultEntryURL, cfg.EntryURL)
	require.Equal(t, DefaultTemplateFile, cfg.TemplateFile)
}

// TestLoadOrDefault returns defaults only when the file is missing.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("entry_url: [unclosed\n"), 0o600))

	_, err = LoadOrDefault(broken)
	require.Error(t, err)
}

// TestSave_Nil rejects a nil configuration.
func TestSave_Nil(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil), errConfigIsNotSet)
}
