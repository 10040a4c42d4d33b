package sandbox

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"

	"plugchain/internal/plugin"
)

// Engine compiles plugin modules and creates executors for them. It is safe
// for concurrent use.
type Engine struct {
	cache       wazero.CompilationCache
	validator   wazero.Runtime
	memoryPages uint32
	log         logrus.FieldLogger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger that receives plugin output and
// diagnostics.
func WithEngineLogger(log logrus.FieldLogger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithMemoryLimitPages caps guest linear memory (64 KiB pages).
func WithMemoryLimitPages(pages uint32) EngineOption {
	return func(e *Engine) {
		e.memoryPages = pages
	}
}

// NewEngine creates an Engine with an in-memory compilation cache.
func NewEngine(ctx context.Context, opts ...EngineOption) *Engine {
	e := &Engine{cache: wazero.NewCompilationCache()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.New()
	}
	e.validator = wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	return e
}

func (e *Engine) runtimeConfig() wazero.RuntimeConfig {
	cfg := wazero.NewRuntimeConfig().
		WithCompilationCache(e.cache).
		WithCloseOnContextDone(true)
	if e.memoryPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.memoryPages)
	}
	return cfg
}

// Compile validates and compiles raw module bytes. It implements
// plugin.Compiler; the returned artifact is a *Module.
func (e *Engine) Compile(ctx context.Context, name string, raw []byte) (plugin.Artifact, error) {
	compiled, err := e.validator.CompileModule(ctx, raw)
	if err != nil {
		return nil, &plugin.CompilationError{Plugin: name, Err: err}
	}
	if err := validateExports(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, &plugin.CompilationError{Plugin: name, Err: err}
	}
	return &Module{
		name:     name,
		raw:      slices.Clone(raw),
		compiled: compiled,
		engine:   e,
	}, nil
}

// Close releases the validation runtime and the compilation cache.
func (e *Engine) Close(ctx context.Context) error {
	return multierr.Combine(e.validator.Close(ctx), e.cache.Close(ctx))
}

func validateExports(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingExport, ExportMemory)
	}
	funcs := compiled.ExportedFunctions()
	for _, sig := range requiredFuncs {
		def, ok := funcs[sig.name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingExport, sig.name)
		}
		if err := checkSignature(sig, def); err != nil {
			return err
		}
	}
	for _, sig := range optionalFuncs {
		if def, ok := funcs[sig.name]; ok {
			if err := checkSignature(sig, def); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkSignature(want exportSig, def api.FunctionDefinition) error {
	if !slices.Equal(want.params, def.ParamTypes()) || !slices.Equal(want.results, def.ResultTypes()) {
		return fmt.Errorf("%w: %s%s", ErrExportSignature, want.name, signatureString(def))
	}
	return nil
}

func signatureString(def api.FunctionDefinition) string {
	format := func(ts []api.ValueType) string {
		out := "("
		for i, t := range ts {
			if i > 0 {
				out += ", "
			}
			out += api.ValueTypeName(t)
		}
		return out + ")"
	}
	return format(def.ParamTypes()) + " -> " + format(def.ResultTypes())
}

// Module is the compiled form of a plugin held by the module cache.
type Module struct {
	name     string
	raw      []byte
	compiled wazero.CompiledModule
	engine   *Engine
}

func (m *Module) Name() string { return m.name }

// Exports lists exported function names, sorted.
func (m *Module) Exports() []string {
	names := make([]string, 0, len(m.compiled.ExportedFunctions()))
	for name := range m.compiled.ExportedFunctions() {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Imports lists imported functions as "module.name", sorted.
func (m *Module) Imports() []string {
	defs := m.compiled.ImportedFunctions()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		mod, name, _ := def.Import()
		names = append(names, mod+"."+name)
	}
	slices.Sort(names)
	return names
}

// Close implements plugin.Artifact.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
