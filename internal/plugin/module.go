package plugin

import (
	"context"
	"sync"
	"sync/atomic"
)

// Artifact is a compiled module owned by a Compiler's runtime.
type Artifact interface {
	Close(ctx context.Context) error
}

// Compiler turns raw plugin bytes into an Artifact.
type Compiler interface {
	Compile(ctx context.Context, name string, raw []byte) (Artifact, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, name string, raw []byte) (Artifact, error)

func (f CompilerFunc) Compile(ctx context.Context, name string, raw []byte) (Artifact, error) {
	return f(ctx, name, raw)
}

type sharedArtifact struct {
	art  Artifact
	refs atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

func (s *sharedArtifact) release(ctx context.Context) error {
	if s.refs.Add(-1) > 0 {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.art.Close(ctx)
	})
	return s.closeErr
}

// CompiledModule is a handle onto a shared compiled plugin artifact.
type CompiledModule struct {
	name     string
	digest   Digest
	size     int
	shared   *sharedArtifact
	released atomic.Bool
}

func newCompiledModule(name string, digest Digest, size int, art Artifact) *CompiledModule {
	s := &sharedArtifact{art: art}
	s.refs.Store(1)
	return &CompiledModule{name: name, digest: digest, size: size, shared: s}
}

// Name returns the plugin name the module was compiled under.
func (m *CompiledModule) Name() string { return m.name }

func (m *CompiledModule) Digest() Digest { return m.digest }

// Size returns the length of the raw module bytes.
func (m *CompiledModule) Size() int { return m.size }

// Artifact returns the compiled artifact shared by every clone.
func (m *CompiledModule) Artifact() Artifact { return m.shared.art }

// Refs returns the number of live handles onto the artifact.
func (m *CompiledModule) Refs() int64 { return m.shared.refs.Load() }

// Clone returns a new handle sharing the same artifact. It must not be
// called on a handle that was already released.
func (m *CompiledModule) Clone() *CompiledModule {
	m.shared.refs.Add(1)
	return &CompiledModule{name: m.name, digest: m.digest, size: m.size, shared: m.shared}
}

// Release drops this handle. The artifact is closed when the last handle
// goes away. Releasing the same handle twice is a no-op.
func (m *CompiledModule) Release(ctx context.Context) error {
	if m == nil || !m.released.CompareAndSwap(false, true) {
		return nil
	}
	return m.shared.release(ctx)
}
