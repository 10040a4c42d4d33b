// Package serialized implements the versioned byte form that crosses the
// host/plugin boundary.
//
// Every buffer is a msgpack array [version, payload]. The version guards
// against a plugin built for a different layout: decoding a buffer with a
// foreign version fails with ErrVersionMismatch instead of producing a
// half-populated value.
package serialized

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"plugchain/internal/ast"
)

// Version is the layout version written into every buffer.
const Version uint32 = 1

var (
	// ErrVersionMismatch is returned when a buffer carries a different layout version.
	ErrVersionMismatch = errors.New("serialized: version mismatch")
	// ErrEmpty is returned when decoding a zero-length buffer.
	ErrEmpty = errors.New("serialized: empty buffer")
)

type envelope struct {
	_msgpack struct{} `msgpack:",as_array"` //nolint:unused

	Version uint32
	Payload msgpack.RawMessage
}

// Bytes is an immutable versioned buffer.
type Bytes struct {
	buf []byte
}

// FromBytes wraps raw bytes produced by a plugin. The slice is not copied.
func FromBytes(b []byte) Bytes { return Bytes{buf: b} }

// Bytes returns the underlying buffer; callers must not modify it.
func (b Bytes) Bytes() []byte { return b.buf }

func (b Bytes) Len() int { return len(b.buf) }

func (b Bytes) Empty() bool { return len(b.buf) == 0 }

// Equal reports whether both buffers hold the same bytes.
func (b Bytes) Equal(other Bytes) bool { return bytes.Equal(b.buf, other.buf) }

// Marshal encodes v into a versioned buffer. Map keys are sorted so equal
// values always produce equal bytes.
func Marshal(v any) (Bytes, error) {
	payload, err := encode(v)
	if err != nil {
		return Bytes{}, fmt.Errorf("serialized: encode payload: %w", err)
	}
	out, err := encode(&envelope{Version: Version, Payload: payload})
	if err != nil {
		return Bytes{}, fmt.Errorf("serialized: encode envelope: %w", err)
	}
	return Bytes{buf: out}, nil
}

// Unmarshal decodes a versioned buffer into v.
func Unmarshal(b Bytes, v any) error {
	if b.Empty() {
		return ErrEmpty
	}
	var env envelope
	if err := msgpack.Unmarshal(b.buf, &env); err != nil {
		return fmt.Errorf("serialized: decode envelope: %w", err)
	}
	if env.Version != Version {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, env.Version, Version)
	}
	if err := msgpack.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("serialized: decode payload: %w", err)
	}
	return nil
}

// SerializeProgram produces the boundary form of a program.
func SerializeProgram(p ast.Program) (Bytes, error) {
	return Marshal(&p)
}

// DeserializeProgram rebuilds the host program from its boundary form.
func (b Bytes) DeserializeProgram() (ast.Program, error) {
	var p ast.Program
	if err := Unmarshal(b, &p); err != nil {
		return ast.Program{}, err
	}
	return p, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
