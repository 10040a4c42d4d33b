package transform

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"plugchain/internal/ast"
	"plugchain/internal/comments"
	"plugchain/internal/metadata"
	"plugchain/internal/metrics"
	"plugchain/internal/observ"
	"plugchain/internal/plugin"
	"plugchain/internal/sandbox"
	"plugchain/internal/serialized"
	"plugchain/internal/trace"
)

// SandboxedRunner executes each plugin in its own sandbox instance. One
// runner may serve concurrent Run calls; each call is confined to the
// calling goroutine.
type SandboxedRunner struct {
	backend sandbox.Backend
	opts    options
}

func NewSandboxedRunner(backend sandbox.Backend, opts ...Option) *SandboxedRunner {
	return &SandboxedRunner{backend: backend, opts: newOptions(opts)}
}

// Run serializes program once, threads the bytes through every plugin in
// order and writes the deserialized result back into program. The first
// failing plugin aborts the chain; program is then left as the dummy
// placeholder.
func (r *SandboxedRunner) Run(ctx context.Context, plugins []plugin.Reference, program *ast.Program, tctx *Context) error {
	if tctx == nil {
		tctx = &Context{}
	}
	log := r.opts.log.WithFields(logrus.Fields{"file": tctx.FilePath, "plugins": len(plugins)})
	timer := observ.TimerFromContext(ctx)
	span, ctx := trace.Start(ctx, trace.ScopeChain, "chain")
	span.WithExtra("file", tctx.FilePath)
	start := time.Now()

	err := r.run(ctx, plugins, program, tctx, log, timer)

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
		span.End(err.Error())
	} else {
		span.End("")
	}
	r.opts.metrics.ObserveChain(status, time.Since(start))
	return err
}

func (r *SandboxedRunner) run(ctx context.Context, plugins []plugin.Reference, program *ast.Program, tctx *Context, log *logrus.Entry, timer *observ.Timer) error {
	bridged := comments.MaybeBridge(tctx.leadingTrailing())
	commentsEnabled := bridged != nil

	phase := timer.Begin("serialize")
	bytes, err := serialized.SerializeProgram(ast.Take(program))
	timer.End(phase, "")
	if err != nil {
		return &Error{Kind: KindSerialize, Err: err}
	}
	r.opts.metrics.ObserveSerialized(bytes.Len())
	trace.Point(ctx, trace.ScopeHost, "serialize", strconv.Itoa(bytes.Len())+" bytes")

	fileName := tctx.FileName
	meta := metadata.Build(&fileName, r.opts.mode, r.opts.extra)
	metaBytes, err := meta.Marshal()
	if err != nil {
		return &Error{Kind: KindSerialize, Err: err}
	}

	for i, ref := range plugins {
		out, err := r.invoke(ctx, ref, bytes, sandbox.ExecutorOptions{
			SourceMap:      tctx.SourceMap,
			File:           tctx.File,
			UnresolvedMark: tctx.UnresolvedMark,
			Metadata:       meta,
			MetadataBytes:  metaBytes,
			Config:         ref.Config,
			Comments:       bridged,
			Logger:         log,
		}, commentsEnabled, timer)
		if err != nil {
			log.WithError(err).WithField("plugin", ref.Name()).Error("transform plugin failed")
			return &Error{Kind: KindPluginExecution, Plugin: ref.Name(), Index: i, Err: err}
		}
		bytes = out
		r.opts.metrics.ObserveSerialized(bytes.Len())
	}

	phase = timer.Begin("deserialize")
	result, err := bytes.DeserializeProgram()
	timer.End(phase, "")
	if err != nil {
		return &Error{Kind: KindDeserialize, Err: err}
	}

	*program = result
	log.Debug("transform chain finished")
	return nil
}

// invoke runs one plugin over in with its own executor and module handle.
func (r *SandboxedRunner) invoke(ctx context.Context, ref plugin.Reference, in serialized.Bytes, opts sandbox.ExecutorOptions, commentsEnabled bool, timer *observ.Timer) (out serialized.Bytes, err error) {
	name := ref.Name()
	if ref.Module == nil {
		return serialized.Bytes{}, plugin.ErrNilModule
	}

	span, ctx := trace.Start(ctx, trace.ScopePlugin, "plugin:"+name)
	span.WithExtra("in", strconv.Itoa(in.Len()))
	phase := timer.Begin("plugin:" + name)
	start := time.Now()
	defer func() {
		status := metrics.StatusOK
		detail := ""
		if err != nil {
			status = metrics.StatusError
			detail = err.Error()
		} else {
			span.WithExtra("out", strconv.Itoa(out.Len()))
		}
		timer.End(phase, detail)
		span.End(detail)
		r.opts.metrics.ObservePlugin(name, status, time.Since(start))
	}()

	module := ref.Module.Clone()
	defer func() {
		if rerr := module.Release(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}()
	opts.Module = module

	exec, err := r.backend.NewExecutor(ctx, opts)
	if err != nil {
		return serialized.Bytes{}, err
	}
	defer func() {
		if cerr := exec.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return exec.Transform(ctx, in, commentsEnabled)
}
