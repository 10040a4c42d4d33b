package transform

import (
	"context"

	"github.com/sirupsen/logrus"

	"plugchain/internal/ast"
	"plugchain/internal/diag"
	"plugchain/internal/metadata"
	"plugchain/internal/metrics"
	"plugchain/internal/plugin"
	"plugchain/internal/sandbox"
)

// ChainRunner applies plugins to program in order.
type ChainRunner interface {
	Run(ctx context.Context, plugins []plugin.Reference, program *ast.Program, tctx *Context) error
}

type options struct {
	mode    string
	extra   map[string]string
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

// Option configures a runner.
type Option func(*options)

// WithMode sets the "env" metadata plugins observe. The default is
// metadata.EnvDevelopment.
func WithMode(mode string) Option {
	return func(o *options) {
		if mode != "" {
			o.mode = mode
		}
	}
}

// WithExperimental adds key/value pairs to the metadata of every run.
func WithExperimental(extra map[string]string) Option {
	return func(o *options) {
		o.extra = extra
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) options {
	o := options{mode: metadata.EnvDevelopment}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.New()
	}
	return o
}

// NewRunner returns the sandboxed runner when this build supports it and
// backend is non-nil, and the warning-only fallback otherwise.
func NewRunner(backend sandbox.Backend, sink diag.Sink, opts ...Option) ChainRunner {
	if SandboxSupported && backend != nil {
		return NewSandboxedRunner(backend, opts...)
	}
	return NewUnsupportedRunner(sink, opts...)
}
