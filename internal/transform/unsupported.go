package transform

import (
	"context"

	"github.com/sirupsen/logrus"

	"plugchain/internal/ast"
	"plugchain/internal/diag"
	"plugchain/internal/metrics"
	"plugchain/internal/plugin"
)

const (
	unsupportedTitle       = "Unsupported WebAssembly transform plugins on this platform."
	unsupportedDescription = "This build of plugchain cannot run WebAssembly transform plugins; " +
		"the program was left unchanged."
)

// UnsupportedRunner stands in for SandboxedRunner in builds without the
// sandbox. It never fails and never touches the program.
type UnsupportedRunner struct {
	sink    diag.Sink
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewUnsupportedRunner(sink diag.Sink, opts ...Option) *UnsupportedRunner {
	if sink == nil {
		sink = diag.NopSink{}
	}
	o := newOptions(opts)
	return &UnsupportedRunner{sink: sink, log: o.log, metrics: o.metrics}
}

// Run emits one warning naming tctx.FilePath and returns nil.
func (r *UnsupportedRunner) Run(_ context.Context, plugins []plugin.Reference, _ *ast.Program, tctx *Context) error {
	var path string
	if tctx != nil {
		path = tctx.FilePath
	}
	r.sink.Emit(diag.NewWarning(diag.CategoryTransform, path, unsupportedTitle).
		WithDescription(unsupportedDescription))
	r.log.WithFields(logrus.Fields{"file": path, "plugins": len(plugins)}).
		Warn("transform plugins skipped: sandbox not available in this build")
	r.metrics.ObserveChain(metrics.StatusUnsupported, 0)
	return nil
}
