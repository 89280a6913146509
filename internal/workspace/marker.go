package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/lmstudio-pkgbuild/internal/domain/release"
	"github.com/oshokin/lmstudio-pkgbuild/internal/logger"
)

// MarkerFilename marks that a run is in progress in the workspace.
const MarkerFilename = ".lmstudio-pkgbuild.lock"

// ErrAlreadyRunning is returned when a live process holds the run marker.
var ErrAlreadyRunning = errors.New("another run is in progress in this workspace")

// Marker records who holds the workspace.
type Marker struct {
	// PID is the process ID of the run holding the marker.
	PID int `yaml:"pid"`
	// Hostname is the machine the run was started on.
	Hostname string `yaml:"hostname"`
	// Username is the system user who started the run.
	Username string `yaml:"username"`
	// StartedAt is when the marker was written.
	StartedAt time.Time `yaml:"started_at"`
}

// Lock writes the run marker for the current process. A marker left by a
// process that no longer exists is considered stale and replaced.
func (w *Workspace) Lock(ctx context.Context) (*Marker, error) {
	existing, err := w.readMarker()
	if err != nil {
		return nil, err
	}

	if existing != nil {
		held, heldErr := isHeld(existing)
		if heldErr != nil {
			return nil, heldErr
		}

		if held {
			return nil, fmt.Errorf("%w: pid %d (%s@%s) since %s", ErrAlreadyRunning,
				existing.PID, existing.Username, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
		}

		logger.WarnKV(ctx, "Removing stale run marker",
			"pid", existing.PID, "hostname", existing.Hostname, "started_at", existing.StartedAt)

		if err = os.Remove(w.Path(MarkerFilename)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: remove stale marker: %w", release.ErrFilesystem, err)
		}
	}

	marker, err := detectMarker()
	if err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(marker)
	if err != nil {
		return nil, fmt.Errorf("encode marker: %w", err)
	}

	// O_EXCL keeps two runs racing past the liveness check from both winning.
	f, err := os.OpenFile(w.Path(MarkerFilename), os.O_CREATE|os.O_EXCL|os.O_WRONLY, GeneratedFileMode)
	if errors.Is(err, os.ErrExist) {
		return nil, ErrAlreadyRunning
	}

	if err != nil {
		return nil, fmt.Errorf("%w: create marker: %w", release.ErrFilesystem, err)
	}

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(w.Path(MarkerFilename))

		return nil, fmt.Errorf("%w: write marker: %w", release.ErrFilesystem, err)
	}

	if err = f.Close(); err != nil {
		return nil, fmt.Errorf("%w: close marker: %w", release.ErrFilesystem, err)
	}

	logger.DebugKV(ctx, "Acquired run marker", "path", w.Path(MarkerFilename), "pid", marker.PID)

	return marker, nil
}

// Unlock removes the run marker if it belongs to the current process.
func (w *Workspace) Unlock(ctx context.Context) error {
	existing, err := w.readMarker()
	if err != nil {
		return err
	}

	if existing == nil || existing.PID != os.Getpid() {
		return nil
	}

	if err = os.Remove(w.Path(MarkerFilename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove marker: %w", release.ErrFilesystem, err)
	}

	logger.Debug(ctx, "Released run marker")

	return nil
}

// readMarker loads the marker, returning nil when there is none.
func (w *Workspace) readMarker() (*Marker, error) {
	data, err := os.ReadFile(w.Path(MarkerFilename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: read marker: %w", release.ErrFilesystem, err)
	}

	var marker Marker

	// An unreadable marker has no live owner we could identify.
	if err = yaml.Unmarshal(data, &marker); err != nil {
		return &Marker{}, nil //nolint:nilerr // Treated as stale.
	}

	return &marker, nil
}

// isHeld reports whether the marker belongs to another live run of this
// program. A marker from a different host, or whose PID now belongs to an
// unrelated executable, is stale.
func isHeld(marker *Marker) (bool, error) {
	if marker.PID <= 0 || marker.PID == os.Getpid() {
		return false, nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		return false, fmt.Errorf("hostname: %w", err)
	}

	if marker.Hostname != "" && marker.Hostname != hostname {
		return false, nil
	}

	process, err := ps.FindProcess(marker.PID)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", marker.PID, err)
	}

	if process == nil {
		return false, nil
	}

	self, err := ps.FindProcess(os.Getpid())
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", os.Getpid(), err)
	}

	// Executable names come from the same source on both sides, so any
	// truncation by the OS applies to both.
	if self != nil && process.Executable() != self.Executable() {
		return false, nil
	}

	return true, nil
}

// detectMarker gathers process, host and user information for the marker.
func detectMarker() (*Marker, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Marker{
		PID:       os.Getpid(),
		Hostname:  hostname,
		Username:  currentUser.Username,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}, nil
}
