package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheClosed is returned by CompileOrGet after Close.
	ErrCacheClosed = errors.New("plugin: module cache is closed")
	// ErrInvalidConfig is returned for plugin configuration that is not valid JSON.
	ErrInvalidConfig = errors.New("plugin: invalid configuration")
	// ErrNilModule is returned for a Reference without a compiled module.
	ErrNilModule = errors.New("plugin: reference has no module")
)

// CompilationError reports a plugin module that could not be compiled.
type CompilationError struct {
	Plugin string
	Err    error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile plugin module %q: %v", e.Plugin, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }
