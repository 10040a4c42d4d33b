package sandbox

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/vmihailenco/msgpack/v5"

	"plugchain/internal/comments"
	"plugchain/internal/metadata"
	"plugchain/internal/source"
)

// invocation is the state host functions of one executor close over.
type invocation struct {
	plugin    string
	sourceMap *source.FileSet
	file      source.FileID
	meta      *metadata.Context
	comments  *comments.SingleThreaded
	log       *logrus.Entry

	commentsEnabled bool
	result          []byte
	resultSet       bool
	diagnostics     []PluginDiagnostic
}

func (inv *invocation) reset(commentsEnabled bool) {
	inv.commentsEnabled = commentsEnabled && inv.comments != nil
	inv.result = nil
	inv.resultSet = false
	inv.diagnostics = nil
}

// register instantiates the "env" host module in rt.
func (inv *invocation) register(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().WithFunc(inv.setTransformResult).Export(HostSetTransformResult).
		NewFunctionBuilder().WithFunc(inv.emitDiagnostics).Export(HostEmitDiagnostics).
		NewFunctionBuilder().WithFunc(inv.getLeading).Export(HostGetLeading).
		NewFunctionBuilder().WithFunc(inv.getTrailing).Export(HostGetTrailing).
		NewFunctionBuilder().WithFunc(inv.hasLeading).Export(HostHasLeading).
		NewFunctionBuilder().WithFunc(inv.hasTrailing).Export(HostHasTrailing).
		NewFunctionBuilder().WithFunc(inv.addLeading).Export(HostAddLeading).
		NewFunctionBuilder().WithFunc(inv.addTrailing).Export(HostAddTrailing).
		NewFunctionBuilder().WithFunc(inv.lookupCharPos).Export(HostLookupCharPos).
		NewFunctionBuilder().WithFunc(inv.spanToSource).Export(HostSpanToSource).
		NewFunctionBuilder().WithFunc(inv.getContext).Export(HostGetContext).
		Instantiate(ctx)
	return err
}

// Host functions panic on malformed guest input; wazero turns the panic
// into an error returned from the guest call.

func (inv *invocation) setTransformResult(_ context.Context, m api.Module, ptr, n uint32) {
	inv.result = mustRead(m, ptr, n)
	inv.resultSet = true
}

func (inv *invocation) emitDiagnostics(_ context.Context, m api.Module, ptr, n uint32) {
	var diags []PluginDiagnostic
	if err := msgpack.Unmarshal(mustRead(m, ptr, n), &diags); err != nil {
		panic(fmt.Errorf("decode diagnostics: %w", err))
	}
	for _, d := range diags {
		inv.log.WithField("span", d.Span.String()).Log(d.logLevel(), d.Message)
	}
	inv.diagnostics = append(inv.diagnostics, diags...)
}

func (inv *invocation) getLeading(ctx context.Context, m api.Module, pos uint32) uint64 {
	if !inv.commentsEnabled {
		return 0
	}
	return inv.writeComments(ctx, m, inv.comments.Leading(source.BytePos(pos)))
}

func (inv *invocation) getTrailing(ctx context.Context, m api.Module, pos uint32) uint64 {
	if !inv.commentsEnabled {
		return 0
	}
	return inv.writeComments(ctx, m, inv.comments.Trailing(source.BytePos(pos)))
}

func (inv *invocation) hasLeading(pos uint32) uint32 {
	return boolI32(inv.commentsEnabled && inv.comments.HasLeading(source.BytePos(pos)))
}

func (inv *invocation) hasTrailing(pos uint32) uint32 {
	return boolI32(inv.commentsEnabled && inv.comments.HasTrailing(source.BytePos(pos)))
}

func (inv *invocation) addLeading(_ context.Context, m api.Module, pos, ptr, n uint32) {
	if c, ok := inv.readComment(m, ptr, n); ok {
		inv.comments.AddLeading(source.BytePos(pos), c)
	}
}

func (inv *invocation) addTrailing(_ context.Context, m api.Module, pos, ptr, n uint32) {
	if c, ok := inv.readComment(m, ptr, n); ok {
		inv.comments.AddTrailing(source.BytePos(pos), c)
	}
}

func (inv *invocation) lookupCharPos(ctx context.Context, m api.Module, pos uint32) uint64 {
	if inv.sourceMap == nil {
		return 0
	}
	loc, err := inv.sourceMap.LookupLoc(inv.file, source.BytePos(pos))
	if err != nil {
		inv.log.WithError(err).Debug("lookup char pos")
		return 0
	}
	return inv.writeValue(ctx, m, loc)
}

func (inv *invocation) spanToSource(ctx context.Context, m api.Module, lo, hi uint32) uint64 {
	if inv.sourceMap == nil {
		return 0
	}
	text, err := inv.sourceMap.SpanToSource(source.Span{
		File:  inv.file,
		Start: source.BytePos(lo),
		End:   source.BytePos(hi),
	})
	if err != nil {
		inv.log.WithError(err).Debug("span to source")
		return 0
	}
	return mustWrite(ctx, m, []byte(text))
}

func (inv *invocation) getContext(ctx context.Context, m api.Module, ptr, n uint32) uint64 {
	v, ok := inv.meta.Get(string(mustRead(m, ptr, n)))
	if !ok {
		return 0
	}
	return mustWrite(ctx, m, []byte(v))
}

func (inv *invocation) readComment(m api.Module, ptr, n uint32) (comments.Comment, bool) {
	raw := mustRead(m, ptr, n)
	if !inv.commentsEnabled {
		return comments.Comment{}, false
	}
	var c comments.Comment
	if err := msgpack.Unmarshal(raw, &c); err != nil {
		panic(fmt.Errorf("decode comment: %w", err))
	}
	return c, true
}

func (inv *invocation) writeComments(ctx context.Context, m api.Module, cs []comments.Comment) uint64 {
	if len(cs) == 0 {
		return 0
	}
	return inv.writeValue(ctx, m, cs)
}

func (inv *invocation) writeValue(ctx context.Context, m api.Module, v any) uint64 {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("encode host value: %w", err))
	}
	return mustWrite(ctx, m, raw)
}

func mustRead(m api.Module, ptr, n uint32) []byte {
	b, err := readGuest(m, ptr, n)
	if err != nil {
		panic(err)
	}
	return b
}

func mustWrite(ctx context.Context, m api.Module, data []byte) uint64 {
	ptr, n, err := writeGuest(ctx, m, data)
	if err != nil {
		panic(err)
	}
	return packPtrLen(ptr, n)
}
