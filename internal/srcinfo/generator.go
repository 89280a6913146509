package srcinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/oshokin/lmstudio-pkgbuild/internal/domain/release"
	"github.com/oshokin/lmstudio-pkgbuild/internal/logger"
)

// PrintFlag makes makepkg print the derived metadata instead of building.
const PrintFlag = "--printsrcinfo"

var errEmptyCommand = errors.New("makepkg command is empty")

// Writer stores generated files by name.
type Writer interface {
	WriteFile(name string, data []byte) error
}

// Generator runs makepkg for a single workspace.
type Generator struct {
	// command is the makepkg program followed by any fixed arguments.
	command []string
	// dir is the working directory the command runs in.
	dir string
}

// NewGenerator returns a Generator running command in dir. The command may
// carry leading arguments, e.g. "sudo -u builder makepkg".
func NewGenerator(command, dir string) (*Generator, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errEmptyCommand
	}

	return &Generator{
		command: fields,
		dir:     dir,
	}, nil
}

// Print runs the command and returns its standard output. A failed run is
// reported as a *release.ToolError carrying the captured standard error.
func (g *Generator) Print(ctx context.Context) ([]byte, error) {
	args := append(append([]string(nil), g.command[1:]...), PrintFlag)

	//nolint:gosec // G204: The command comes from the operator's own configuration.
	cmd := exec.CommandContext(ctx, g.command[0], args...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.DebugKV(ctx, "Running makepkg", "command", cmd.String(), "dir", g.dir)

	if err := cmd.Run(); err != nil {
		toolErr := &release.ToolError{
			Command:  strings.Join(append(append([]string(nil), g.command...), PrintFlag), " "),
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      err,
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}

		return nil, toolErr
	}

	if stderr.Len() > 0 {
		logger.DebugKV(ctx, "makepkg diagnostics", "stderr", strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// Generate runs the command and overwrites outputName with its output.
func (g *Generator) Generate(ctx context.Context, store Writer, outputName string) error {
	data, err := g.Print(ctx)
	if err != nil {
		return err
	}

	if err = store.WriteFile(outputName, data); err != nil {
		return fmt.Errorf("write %s: %w", outputName, err)
	}

	return nil
}
