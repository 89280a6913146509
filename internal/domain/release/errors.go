package release

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork marks a failed connection or a non-success HTTP status.
	ErrNetwork = errors.New("network error")
	// ErrPatternMismatch marks a filename that does not carry a recognizable version.
	ErrPatternMismatch = errors.New("filename does not match the release pattern")
	// ErrFilesystem marks a missing or unreadable workspace file.
	ErrFilesystem = errors.New("filesystem error")
	// ErrExternalTool marks a failed invocation of an external command.
	ErrExternalTool = errors.New("external tool failed")
)

// PatternMismatchError is returned when a filename cannot be parsed into a version.
type PatternMismatchError struct {
	// Filename is the rejected filename, reported verbatim.
	Filename string
}

func (e *PatternMismatchError) Error() string {
	return fmt.Sprintf("could not extract version from filename %q", e.Filename)
}

// Is reports whether target is ErrPatternMismatch.
func (e *PatternMismatchError) Is(target error) bool {
	return target == ErrPatternMismatch
}

// ToolError is returned when an external command exits unsuccessfully.
type ToolError struct {
	// Command is the command line that was run.
	Command string
	// ExitCode is the process exit status, or -1 if it never started.
	ExitCode int
	// Stderr is the diagnostic output captured from the command.
	Stderr string
	// Err is the underlying error from os/exec.
	Err error
}

func (e *ToolError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s failed", e.Command)

	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}

	return b.String()
}

// Is reports whether target is ErrExternalTool.
func (e *ToolError) Is(target error) bool {
	return target == ErrExternalTool
}

// Unwrap returns the underlying os/exec error.
func (e *ToolError) Unwrap() error {
	return e.Err
}
