package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"plugchain/internal/config"
	"plugchain/internal/metrics"
	"plugchain/internal/plugin"
	"plugchain/internal/sandbox"
)

// session holds what every command shares: the logger, the metrics
// registry, the wasm engine and the module cache compiling through it.
type session struct {
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	engine   *sandbox.Engine
	cache    *plugin.ModuleCache
}

func openSession(cmd *cobra.Command, memoryPages uint32) (*session, error) {
	log, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	engineOpts := []sandbox.EngineOption{sandbox.WithEngineLogger(log)}
	if memoryPages > 0 {
		engineOpts = append(engineOpts, sandbox.WithMemoryLimitPages(memoryPages))
	}
	engine := sandbox.NewEngine(cmd.Context(), engineOpts...)

	return &session{
		log:      log,
		registry: reg,
		metrics:  m,
		engine:   engine,
		cache:    plugin.NewModuleCache(engine, plugin.WithLogger(log), plugin.WithMetrics(m)),
	}, nil
}

// close drops the cache before the engine that compiled its modules.
func (s *session) close(ctx context.Context) error {
	return multierr.Combine(s.cache.Close(ctx), s.engine.Close(ctx))
}

// manifest locates plugchain.toml from the --manifest flag or the working
// directory.
func (s *session) manifest(cmd *cobra.Command) (*config.Manifest, error) {
	explicit, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest flag: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	m, err := config.Discover(explicit, wd)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"manifest": m.Path, "plugins": len(m.Plugins)}).Debug("manifest loaded")
	return m, nil
}

func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	levelStr, err := cmd.Root().PersistentFlags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if quiet && level > logrus.ErrorLevel {
		level = logrus.ErrorLevel
	}

	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
	return log, nil
}

// useColor resolves the --color flag against the terminal state of stdout.
func useColor(cmd *cobra.Command) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(mode) {
	case "auto":
		return isTerminal(os.Stdout), nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}
}

// writeMetrics encodes every gathered family in the Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
