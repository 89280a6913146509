package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/lmstudio-pkgbuild/internal/domain/release"
)

// GeneratedFileMode is the mode of files written by the pipeline.
const GeneratedFileMode os.FileMode = 0o644

var errNotDirectory = errors.New("not a directory")

// Workspace is the directory holding the recipe files.
type Workspace struct {
	// dir is the absolute path of the workspace directory.
	dir string
}

// New opens an existing workspace directory.
func New(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve workspace %s: %w", release.ErrFilesystem, dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: open workspace: %w", release.ErrFilesystem, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: workspace %s: %w", release.ErrFilesystem, abs, errNotDirectory)
	}

	return &Workspace{dir: abs}, nil
}

// Dir returns the absolute workspace path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}

	return filepath.Join(w.dir, name)
}

// Exists reports whether name is present in the workspace.
func (w *Workspace) Exists(name string) (bool, error) {
	_, err := os.Stat(w.Path(name))

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: stat %s: %w", release.ErrFilesystem, name, err)
	}
}

// ReadFile returns the contents of name.
func (w *Workspace) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(w.Path(name))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", release.ErrFilesystem, name, err)
	}

	return data, nil
}

// WriteFile replaces name with data. The new contents are staged next to the
// target and swapped in by rename, so readers see either the old file or the
// complete new one.
func (w *Workspace) WriteFile(name string, data []byte) error {
	target := w.Path(name)

	// go-update renames the current target aside before swapping, so one must exist.
	created, err := ensureExists(target)
	if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: GeneratedFileMode,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		_ = os.Remove(stagedPath(target))

		if created {
			_ = os.Remove(target)
		}

		return fmt.Errorf("%w: write %s: %w", release.ErrFilesystem, name, err)
	}

	return nil
}

// ensureExists creates an empty target if it is missing and reports whether it did.
func ensureExists(target string) (bool, error) {
	_, err := os.Stat(target)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: stat %s: %w", release.ErrFilesystem, target, err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, GeneratedFileMode)
	if err != nil {
		return false, fmt.Errorf("%w: create %s: %w", release.ErrFilesystem, target, err)
	}

	if err = f.Close(); err != nil {
		return true, fmt.Errorf("%w: close %s: %w", release.ErrFilesystem, target, err)
	}

	return true, nil
}

// stagedPath is where go-update writes the new contents before the swap.
func stagedPath(target string) string {
	return filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".new")
}
