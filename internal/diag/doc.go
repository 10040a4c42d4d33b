// Package diag defines the issue model shared by the transform core and its
// callers.
//
// # Data model
//
// Issue is the central record. It carries a Severity, a Category (for
// example "transform"), a one-line Title, a longer Description and the path
// of the file the issue is about (Context).
//
// # Emitting issues
//
// Producers emit through a Sink so they never depend on storage or
// rendering. Bag collects issues for later inspection, DedupSink drops
// repeats, MultiSink fans out. Rendering lives in internal/diagfmt.
//
// Sinks may be shared by transforms running on different goroutines; every
// implementation in this package is safe for concurrent use.
package diag
