package sandbox

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"plugchain/internal/comments"
	"plugchain/internal/metadata"
	"plugchain/internal/plugin"
	"plugchain/internal/serialized"
	"plugchain/internal/source"
)

type harness struct {
	t      *testing.T
	ctx    context.Context
	engine *Engine
	cache  *plugin.ModuleCache
	hook   *test.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	engine := NewEngine(ctx, WithEngineLogger(log))
	cache := plugin.NewModuleCache(engine, plugin.WithLogger(log))
	t.Cleanup(func() {
		assert.NoError(t, cache.Close(ctx))
		assert.NoError(t, engine.Close(ctx))
	})
	return &harness{t: t, ctx: ctx, engine: engine, cache: cache, hook: hook}
}

func (h *harness) module(name string, raw []byte) *plugin.CompiledModule {
	h.t.Helper()
	m, err := h.cache.CompileOrGet(h.ctx, name, raw)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = m.Release(h.ctx) })
	return m
}

func (h *harness) run(opts ExecutorOptions, input []byte, commentsEnabled bool) ([]byte, error) {
	h.t.Helper()
	x, err := h.engine.NewExecutor(h.ctx, opts)
	require.NoError(h.t, err)
	defer func() { assert.NoError(h.t, x.Close(h.ctx)) }()
	out, err := x.Transform(h.ctx, serialized.FromBytes(input), commentsEnabled)
	return out.Bytes(), err
}

func TestEchoPluginRoundTripsBytes(t *testing.T) {
	h := newHarness(t)
	m := h.module("echo", echoPlugin())

	input := []byte("\x92\x01\xa5hello")
	out, err := h.run(ExecutorOptions{Module: m}, input, false)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestExecutorsDoNotShareState(t *testing.T) {
	h := newHarness(t)
	m := h.module("echo", echoPlugin())

	first, err := h.run(ExecutorOptions{Module: m}, []byte("first"), false)
	require.NoError(t, err)
	second, err := h.run(ExecutorOptions{Module: m}, []byte("second"), false)
	require.NoError(t, err)
	assert.Equal(t, "first", string(first))
	assert.Equal(t, "second", string(second))
}

func TestPluginFailures(t *testing.T) {
	tests := []struct {
		name  string
		raw   []byte
		check func(t *testing.T, err error)
	}{
		{
			name: "trap",
			raw:  trapPlugin(),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "unreachable")
			},
		},
		{
			name: "status",
			raw:  statusPlugin(7),
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, int32(7), se.Status)
			},
		},
		{
			name: "no result",
			raw:  noResultPlugin(),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoResult)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			m := h.module(tt.name, tt.raw)

			_, err := h.run(ExecutorOptions{Module: m}, []byte("input"), false)
			require.Error(t, err)
			var ee *ExecutionError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.name, ee.Plugin)
			tt.check(t, err)
		})
	}
}

func TestConfigIsHandedToPlugin(t *testing.T) {
	h := newHarness(t)
	m := h.module("config", configPlugin())

	cfg, err := plugin.ParseConfig([]byte(`{"exclude":["error"]}`))
	require.NoError(t, err)
	out, err := h.run(ExecutorOptions{Module: m, Config: cfg}, []byte("x"), false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"exclude":["error"]}`, string(out))

	out, err = h.run(ExecutorOptions{Module: m}, []byte("x"), false)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestLeadingCommentsProxy(t *testing.T) {
	h := newHarness(t)
	m := h.module("comments", leadingCommentsPlugin(4))

	want := []comments.Comment{
		{Kind: comments.Line, Span: source.Span{Start: 0, End: 3}, Text: " a"},
		{Kind: comments.Block, Span: source.Span{Start: 3, End: 4}, Text: "b"},
	}
	bridged := comments.NewSingleThreaded(
		map[source.BytePos][]comments.Comment{4: want},
		map[source.BytePos][]comments.Comment{9: {{Text: "t"}}},
	)
	opts := ExecutorOptions{Module: m, Comments: bridged}

	out, err := h.run(opts, []byte("x"), true)
	require.NoError(t, err)
	var got []comments.Comment
	require.NoError(t, msgpack.Unmarshal(out, &got))
	assert.Equal(t, want, got)

	out, err = h.run(opts, []byte("x"), false)
	require.NoError(t, err)
	assert.Empty(t, out, "disabled comments must read as absent")

	out, err = h.run(ExecutorOptions{Module: m}, []byte("x"), true)
	require.NoError(t, err)
	assert.Empty(t, out, "no bridged copy means no comments")
}

func TestAddCommentLandsInBridgedCopyOnly(t *testing.T) {
	h := newHarness(t)
	m := h.module("add", addCommentPlugin(12))

	shared := comments.New()
	shared.AddLeading(1, comments.Comment{Text: "one"})
	shared.AddTrailing(2, comments.Comment{Text: "two"})
	bridged := comments.MaybeBridge(shared.Leading, shared.Trailing)
	require.NotNil(t, bridged)

	added := comments.Comment{Kind: comments.Block, Text: "injected"}
	raw, err := msgpack.Marshal(added)
	require.NoError(t, err)

	_, err = h.run(ExecutorOptions{Module: m, Comments: bridged}, raw, true)
	require.NoError(t, err)
	assert.Equal(t, []comments.Comment{added}, bridged.Leading(12))
	assert.False(t, shared.Leading.Has(12))
}

func TestSourceMapProxies(t *testing.T) {
	h := newHarness(t)
	fs := source.NewFileSet()
	file := fs.AddVirtual("input.js", []byte("let a = 1;\nfoo(a);\n"))

	t.Run("span to source", func(t *testing.T) {
		m := h.module("span", spanPlugin(11, 17))
		out, err := h.run(ExecutorOptions{Module: m, SourceMap: fs, File: file}, []byte("x"), false)
		require.NoError(t, err)
		assert.Equal(t, "foo(a)", string(out))
	})

	t.Run("lookup char pos", func(t *testing.T) {
		m := h.module("charpos", charPosPlugin(15))
		out, err := h.run(ExecutorOptions{Module: m, SourceMap: fs, File: file}, []byte("x"), false)
		require.NoError(t, err)
		var loc source.Loc
		require.NoError(t, msgpack.Unmarshal(out, &loc))
		assert.Equal(t, source.Loc{File: "input.js", Line: 2, Col: 5}, loc)
	})

	t.Run("out of range", func(t *testing.T) {
		m := h.module("charpos-far", charPosPlugin(500))
		out, err := h.run(ExecutorOptions{Module: m, SourceMap: fs, File: file}, []byte("x"), false)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestTransformContextLookup(t *testing.T) {
	h := newHarness(t)
	m := h.module("ctx", lookupPlugin(importGetContext))

	name := "src/app.js"
	meta := metadata.Build(&name, metadata.EnvProduction, map[string]string{"jsx": "automatic"})
	opts := ExecutorOptions{Module: m, Metadata: meta}

	for key, want := range map[string]string{
		metadata.KeyFilename: name,
		metadata.KeyEnv:      metadata.EnvProduction,
		"jsx":                "automatic",
		"missing":            "",
	} {
		out, err := h.run(opts, []byte(key), false)
		require.NoError(t, err, key)
		assert.Equal(t, want, string(out), key)
	}
}

func TestDiagnosticsAttachToFailure(t *testing.T) {
	h := newHarness(t)
	m := h.module("lint", diagnosticsPlugin())

	raw, err := msgpack.Marshal([]PluginDiagnostic{
		{Level: LevelWarning, Message: "prefer const"},
		{Level: LevelError, Message: "console is not allowed"},
	})
	require.NoError(t, err)

	_, err = h.run(ExecutorOptions{Module: m}, raw, false)
	require.Error(t, err)
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	require.Len(t, ee.Diagnostics, 2)
	assert.Contains(t, err.Error(), "console is not allowed")
	assert.NotContains(t, err.Error(), "prefer const")

	var logged bool
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "console is not allowed" {
			logged = true
			assert.Equal(t, "lint", e.Data["plugin"])
		}
	}
	assert.True(t, logged)
}

func TestCompileRejectsInvalidModules(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr error
	}{
		{name: "empty module", raw: []byte("\x00asm\x01\x00\x00\x00"), wantErr: ErrMissingExport},
		{name: "no transform", raw: withoutTransform(), wantErr: ErrMissingExport},
		{name: "garbage", raw: []byte("definitely not wasm")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.cache.CompileOrGet(h.ctx, tt.name, tt.raw)
			require.Error(t, err)
			var ce *plugin.CompilationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.name, ce.Plugin)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestModuleIntrospection(t *testing.T) {
	h := newHarness(t)
	m := h.module("echo", echoPlugin())

	mod, ok := m.Artifact().(*Module)
	require.True(t, ok)
	assert.Equal(t, "echo", mod.Name())
	assert.Equal(t, []string{ExportAlloc, ExportTransform}, mod.Exports())
	assert.Equal(t, []string{HostModuleName + "." + HostSetTransformResult}, mod.Imports())
}

func TestForeignModuleRejected(t *testing.T) {
	h := newHarness(t)
	other := NewEngine(h.ctx)
	defer other.Close(h.ctx)
	cache := plugin.NewModuleCache(other)
	defer cache.Close(h.ctx)

	m, err := cache.CompileOrGet(h.ctx, "echo", echoPlugin())
	require.NoError(t, err)
	defer m.Release(h.ctx)

	_, err = h.engine.NewExecutor(h.ctx, ExecutorOptions{Module: m})
	assert.ErrorIs(t, err, ErrForeignModule)
}

func unpackPtrLen(v uint64) (ptr, n uint32) {
	return uint32(v >> 32), uint32(v)
}

func TestPackPtrLen(t *testing.T) {
	ptr, n := unpackPtrLen(packPtrLen(0xdeadbeef, 42))
	assert.Equal(t, uint32(0xdeadbeef), ptr)
	assert.Equal(t, uint32(42), n)
}
