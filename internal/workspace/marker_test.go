package workspace

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestLockUnlock_Roundtrip acquires and releases the marker.
func TestLockUnlock_Roundtrip(t *testing.T) {
	t.Parallel()

	ws, err := New(t.TempDir())
	require.NoError(t, err)

	marker, err := ws.Lock(context.Background())
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), marker.PID)
	require.NotEmpty(t, marker.Hostname)
	require.NotEmpty(t, marker.Username)

	ok, err := ws.Exists(MarkerFilename)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, ws.Unlock(context.Background()))

	ok, err = ws.Exists(MarkerFilename)
	require.NoError(t, err)
	require.False(t, ok)
}

// holderEnv makes the test binary act as another run holding the marker.
const holderEnv = "LMSTUDIO_PKGBUILD_MARKER_HOLDER"

// TestMarkerHolder is the body of the helper process started by startHolder.
func TestMarkerHolder(t *testing.T) {
	if os.Getenv(holderEnv) != "1" {
		t.Skip("helper process only")
	}

	time.Sleep(30 * time.Second)
}

// startHolder runs a copy of this binary, so its executable name matches ours.
func startHolder(t *testing.T) int {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=^TestMarkerHolder$")
	cmd.Env = append(os.Environ(), holderEnv+"=1")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	return cmd.Process.Pid
}

// TestLock_LiveOwnerBlocks refuses to run while the marker's process is alive.
func TestLock_LiveOwnerBlocks(t *testing.T) {
	t.Parallel()

	hostname, err := os.Hostname()
	require.NoError(t, err)

	ws, err := New(t.TempDir())
	require.NoError(t, err)

	writeMarker(t, ws, &Marker{PID: startHolder(t), Hostname: hostname, Username: "madgoat", StartedAt: time.Now()})

	_, err = ws.Lock(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)

	// Unlock leaves a foreign marker alone.
	require.NoError(t, ws.Unlock(context.Background()))

	ok, err := ws.Exists(MarkerFilename)
	require.NoError(t, err)
	require.True(t, ok)
}

// TestLock_ReplacesMarkerFromOtherHost ignores a live PID recorded on another machine.
func TestLock_ReplacesMarkerFromOtherHost(t *testing.T) {
	t.Parallel()

	ws, err := New(t.TempDir())
	require.NoError(t, err)

	writeMarker(t, ws, &Marker{
		PID:       1,
		Hostname:  "some-other-box",
		Username:  "ghost",
		StartedAt: time.Now().Add(-72 * time.Hour),
	})

	marker, err := ws.Lock(context.Background())
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), marker.PID)
}

// TestLock_ReplacesMarkerWithReusedPID ignores a live PID that now runs another program.
func TestLock_ReplacesMarkerWithReusedPID(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	hostname, err := os.Hostname()
	require.NoError(t, err)

	ws, err := New(t.TempDir())
	require.NoError(t, err)

	writeMarker(t, ws, &Marker{PID: cmd.Process.Pid, Hostname: hostname, StartedAt: time.Now().Add(-time.Hour)})

	marker, err := ws.Lock(context.Background())
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), marker.PID)
}

// TestLock_ReplacesStaleMarker takes over a marker whose owner has exited.
func TestLock_ReplacesStaleMarker(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())

	ws, err := New(t.TempDir())
	require.NoError(t, err)

	writeMarker(t, ws, &Marker{PID: cmd.ProcessState.Pid(), StartedAt: time.Now().Add(-time.Hour)})

	marker, err := ws.Lock(context.Background())
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), marker.PID)
}

// TestLock_ReplacesGarbageMarker treats an undecodable marker as stale.
func TestLock_ReplacesGarbageMarker(t *testing.T) {
	t.Parallel()

	ws, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(ws.Path(MarkerFilename), []byte(":\t:not yaml"), 0o600))

	_, err = ws.Lock(context.Background())
	require.NoError(t, err)
}

func writeMarker(t *testing.T, ws *Workspace, marker *Marker) {
	t.Helper()

	data, err := yaml.Marshal(marker)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ws.Path(MarkerFilename), data, 0o600))
}
