package sandbox

import (
	"context"
	"fmt"
	"io"
	"time"

	"fortio.org/safecast"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/multierr"

	"plugchain/internal/ast"
	"plugchain/internal/comments"
	"plugchain/internal/metadata"
	"plugchain/internal/plugin"
	"plugchain/internal/serialized"
	"plugchain/internal/source"
)

// ExecutorOptions carries everything one plugin invocation may observe.
type ExecutorOptions struct {
	SourceMap      *source.FileSet
	File           source.FileID
	UnresolvedMark ast.Mark

	Metadata *metadata.Context
	// MetadataBytes is Metadata in boundary form, serialized once per chain.
	MetadataBytes serialized.Bytes

	Module *plugin.CompiledModule
	Config plugin.Config

	// Comments is the bridged copy, or nil when comments are not bridged.
	Comments *comments.SingleThreaded

	Logger logrus.FieldLogger
}

// Executor runs one plugin instance.
type Executor interface {
	Transform(ctx context.Context, program serialized.Bytes, commentsEnabled bool) (serialized.Bytes, error)
	Close(ctx context.Context) error
}

// Backend creates executors. Engine is the wazero implementation.
type Backend interface {
	NewExecutor(ctx context.Context, opts ExecutorOptions) (Executor, error)
}

var _ Backend = (*Engine)(nil)

// NewExecutor instantiates the plugin in a fresh runtime bound to opts.
func (e *Engine) NewExecutor(ctx context.Context, opts ExecutorOptions) (Executor, error) {
	if opts.Module == nil {
		return nil, fmt.Errorf("%w: nil module", ErrForeignModule)
	}
	mod, ok := opts.Module.Artifact().(*Module)
	if !ok || mod.engine != e {
		return nil, fmt.Errorf("%w: %s", ErrForeignModule, opts.Module.Name())
	}

	log := opts.Logger
	if log == nil {
		log = e.log
	}
	inv := &invocation{
		plugin:    mod.name,
		sourceMap: opts.SourceMap,
		file:      opts.File,
		meta:      opts.Metadata,
		comments:  opts.Comments,
		log:       log.WithField("plugin", mod.name),
	}

	x := &wasmExecutor{
		inv:    inv,
		mark:   opts.UnresolvedMark,
		config: opts.Config.Bytes(),
		meta:   opts.MetadataBytes.Bytes(),
		rt:     wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig()),
	}
	if err := x.instantiate(ctx, mod); err != nil {
		_ = x.Close(ctx)
		return nil, &ExecutionError{Plugin: mod.name, Err: err}
	}
	return x, nil
}

type wasmExecutor struct {
	inv    *invocation
	mark   ast.Mark
	config []byte
	meta   []byte

	rt     wazero.Runtime
	guest  api.Module
	output *io.PipeWriter
	closed bool
}

func (x *wasmExecutor) instantiate(ctx context.Context, mod *Module) error {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, x.rt); err != nil {
		return fmt.Errorf("instantiate wasi: %w", err)
	}
	if err := x.inv.register(ctx, x.rt); err != nil {
		return fmt.Errorf("instantiate host module: %w", err)
	}

	// Same bytes as the validated module, so this hits the compilation cache.
	compiled, err := x.rt.CompileModule(ctx, mod.raw)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	x.output = x.inv.log.WriterLevel(logrus.DebugLevel)
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStdout(x.output).
		WithStderr(x.output).
		WithStartFunctions(ExportInitialize)

	x.guest, err = x.rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	return nil
}

// Transform hands program to __transform and returns the bytes the plugin
// passed to __set_transform_result.
func (x *wasmExecutor) Transform(ctx context.Context, program serialized.Bytes, commentsEnabled bool) (serialized.Bytes, error) {
	if x.closed {
		return serialized.Bytes{}, ErrClosed
	}
	x.inv.reset(commentsEnabled)

	start := time.Now()
	status, err := x.call(ctx, program.Bytes())
	if err != nil {
		return serialized.Bytes{}, x.fail(err)
	}
	if status != statusOK {
		return serialized.Bytes{}, x.fail(&StatusError{Status: status})
	}
	if !x.inv.resultSet {
		return serialized.Bytes{}, x.fail(ErrNoResult)
	}

	x.inv.log.WithFields(logrus.Fields{
		"in":      program.Len(),
		"out":     len(x.inv.result),
		"elapsed": time.Since(start),
	}).Debug("plugin transform finished")
	return serialized.FromBytes(x.inv.result), nil
}

func (x *wasmExecutor) call(ctx context.Context, program []byte) (int32, error) {
	progPtr, progLen, err := writeGuest(ctx, x.guest, program)
	if err != nil {
		return 0, fmt.Errorf("write program: %w", err)
	}
	cfgPtr, cfgLen, err := writeGuest(ctx, x.guest, x.config)
	if err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}
	metaPtr, metaLen, err := writeGuest(ctx, x.guest, x.meta)
	if err != nil {
		return 0, fmt.Errorf("write metadata: %w", err)
	}

	res, err := x.guest.ExportedFunction(ExportTransform).Call(ctx,
		api.EncodeU32(progPtr), api.EncodeU32(progLen),
		api.EncodeU32(cfgPtr), api.EncodeU32(cfgLen),
		api.EncodeU32(metaPtr), api.EncodeU32(metaLen),
		api.EncodeU32(uint32(x.mark)),
		api.EncodeU32(boolI32(x.inv.commentsEnabled)),
	)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", ExportTransform, err)
	}

	if free := x.guest.ExportedFunction(ExportFree); free != nil {
		for _, buf := range [][2]uint32{{progPtr, progLen}, {cfgPtr, cfgLen}, {metaPtr, metaLen}} {
			if buf[1] == 0 {
				continue
			}
			if _, err := free.Call(ctx, api.EncodeU32(buf[0]), api.EncodeU32(buf[1])); err != nil {
				x.inv.log.WithError(err).Debug("guest free failed")
			}
		}
	}
	return api.DecodeI32(res[0]), nil
}

func (x *wasmExecutor) fail(err error) error {
	return &ExecutionError{
		Plugin:      x.inv.plugin,
		Diagnostics: x.inv.diagnostics,
		Err:         err,
	}
}

// Close tears down the runtime and every module in it.
func (x *wasmExecutor) Close(ctx context.Context) error {
	if x.closed {
		return nil
	}
	x.closed = true
	err := x.rt.Close(ctx)
	if x.output != nil {
		err = multierr.Append(err, x.output.Close())
	}
	return err
}

// writeGuest copies data into guest memory allocated through __alloc.
// Empty data is passed as (0, 0) without allocating.
func writeGuest(ctx context.Context, m api.Module, data []byte) (ptr, n uint32, err error) {
	if len(data) == 0 {
		return 0, 0, nil
	}
	n, err = safecast.Conv[uint32](len(data))
	if err != nil {
		return 0, 0, err
	}
	res, err := m.ExportedFunction(ExportAlloc).Call(ctx, api.EncodeU32(n))
	if err != nil {
		return 0, 0, fmt.Errorf("call %s: %w", ExportAlloc, err)
	}
	ptr = api.DecodeU32(res[0])
	if !m.Memory().Write(ptr, data) {
		return 0, 0, fmt.Errorf("%w: write %d bytes at %#x", ErrGuestMemory, n, ptr)
	}
	return ptr, n, nil
}

// readGuest copies n bytes out of guest memory.
func readGuest(m api.Module, ptr, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	view, ok := m.Memory().Read(ptr, n)
	if !ok {
		return nil, fmt.Errorf("%w: read %d bytes at %#x", ErrGuestMemory, n, ptr)
	}
	return append([]byte(nil), view...), nil
}
