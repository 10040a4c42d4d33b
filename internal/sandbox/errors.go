package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingExport is returned when a module lacks a required export.
	ErrMissingExport = errors.New("sandbox: missing required export")
	// ErrExportSignature is returned when an export has an unexpected type.
	ErrExportSignature = errors.New("sandbox: export has wrong signature")
	// ErrNoResult is returned when __transform succeeds without calling
	// __set_transform_result.
	ErrNoResult = errors.New("sandbox: plugin did not set a transform result")
	// ErrForeignModule is returned for a handle not compiled by this Engine.
	ErrForeignModule = errors.New("sandbox: module was not compiled by this engine")
	// ErrGuestMemory is returned for out-of-bounds guest memory access.
	ErrGuestMemory = errors.New("sandbox: guest memory access out of range")
	// ErrClosed is returned when using a closed executor.
	ErrClosed = errors.New("sandbox: executor is closed")
)

// StatusError reports a non-zero __transform return value.
type StatusError struct {
	Status int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", ExportTransform, e.Status)
}

// ExecutionError wraps any failure of a plugin call together with the
// diagnostics the plugin emitted before failing.
type ExecutionError struct {
	Plugin      string
	Diagnostics []PluginDiagnostic
	Err         error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plugin %q: %v", e.Plugin, e.Err)
	for _, d := range e.Diagnostics {
		if d.Level == LevelError {
			b.WriteString("; ")
			b.WriteString(d.Message)
		}
	}
	return b.String()
}

func (e *ExecutionError) Unwrap() error { return e.Err }
