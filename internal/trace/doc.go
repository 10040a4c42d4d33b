// Package trace records spans for transform sessions, chains and single
// plugin invocations.
//
// # Usage
//
//	plugchain transform --trace=- --trace-level=detail unit.json
//
// # Tracers
//
//   - Nop: zero-overhead tracer when tracing is off
//   - StreamTracer: writes each event immediately (file or stderr)
//   - RingTracer: keeps the last N events for a dump after a failure
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// LevelPhase emits session and chain spans, LevelDetail adds one span per
// plugin invocation and LevelDebug adds everything else.
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span, ctx := trace.Start(ctx, trace.ScopeChain, "chain")
//	defer span.End("")
package trace
