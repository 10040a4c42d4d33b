package transform

import (
	"errors"
	"fmt"
)

// Kind classifies chain failures.
type Kind uint8

const (
	KindSerialize Kind = iota + 1
	KindDeserialize
	KindPluginExecution
)

func (k Kind) String() string {
	switch k {
	case KindSerialize:
		return "serialize"
	case KindDeserialize:
		return "deserialize"
	case KindPluginExecution:
		return "plugin execution"
	}
	return "unknown"
}

// Sentinels matched by Error.Is.
var (
	ErrSerialize       = errors.New("transform: serialize program")
	ErrDeserialize     = errors.New("transform: deserialize program")
	ErrPluginExecution = errors.New("transform: plugin execution")
)

// Error is returned by a failed chain run.
type Error struct {
	Kind Kind
	// Plugin names the failing plugin for KindPluginExecution.
	Plugin string
	// Index is the 0-based chain position of Plugin.
	Index int
	Err   error
}

func (e *Error) Error() string {
	if e.Kind == KindPluginExecution {
		return fmt.Sprintf("transform: plugin %q (#%d) failed: %v", e.Plugin, e.Index+1, e.Err)
	}
	return fmt.Sprintf("transform: %s failed: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPluginExecution) and friends match by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSerialize:
		return e.Kind == KindSerialize
	case ErrDeserialize:
		return e.Kind == KindDeserialize
	case ErrPluginExecution:
		return e.Kind == KindPluginExecution
	}
	return false
}
