package plugin

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"plugchain/internal/metrics"
)

// ModuleCache memoizes compiled modules by Fingerprint for one build
// session. Entries are never invalidated: plugin bytes are immutable once
// loaded. It is safe for concurrent use.
type ModuleCache struct {
	compiler Compiler
	log      logrus.FieldLogger
	metrics  *metrics.Metrics

	group singleflight.Group

	mu      sync.RWMutex
	entries map[Digest]*CompiledModule
	closed  bool
}

// CacheOption configures a ModuleCache.
type CacheOption func(*ModuleCache)

// WithLogger sets the logger used for compile events.
func WithLogger(log logrus.FieldLogger) CacheOption {
	return func(c *ModuleCache) {
		c.log = log
	}
}

// WithMetrics sets the collectors updated on hits, misses and compiles.
func WithMetrics(m *metrics.Metrics) CacheOption {
	return func(c *ModuleCache) {
		c.metrics = m
	}
}

// NewModuleCache creates an empty cache compiling through compiler.
func NewModuleCache(compiler Compiler, opts ...CacheOption) *ModuleCache {
	c := &ModuleCache{
		compiler: compiler,
		entries:  make(map[Digest]*CompiledModule),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.New()
	}
	return c
}

// CompileOrGet returns a handle onto the compiled module for (name, raw),
// compiling it on first use. Concurrent callers with the same key share a
// single compilation, which is not cancelled when one of them gives up. The
// caller owns the returned handle and must Release it. Failed compilations
// are not cached.
func (c *ModuleCache) CompileOrGet(ctx context.Context, name string, raw []byte) (*CompiledModule, error) {
	key := Fingerprint(name, raw)
	if m, ok := c.acquire(key); ok {
		c.metrics.CacheHit()
		return m, nil
	}
	c.metrics.CacheMiss()

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		// another flight may have finished between acquire and DoChan
		if c.contains(key) {
			return nil, nil
		}
		return nil, c.compile(shared, key, name, raw)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}
	if m, ok := c.acquire(key); ok {
		return m, nil
	}
	return nil, ErrCacheClosed
}

func (c *ModuleCache) compile(ctx context.Context, key Digest, name string, raw []byte) error {
	log := c.log.WithFields(logrus.Fields{"plugin": name, "digest": key.Short()})

	start := time.Now()
	art, err := c.compiler.Compile(ctx, name, raw)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveCompile(metrics.StatusError, elapsed)
		log.WithError(err).Warn("plugin module compilation failed")
		var ce *CompilationError
		if errors.As(err, &ce) {
			return err
		}
		return &CompilationError{Plugin: name, Err: err}
	}

	m := newCompiledModule(name, key, len(raw), art)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = art.Close(ctx)
		return ErrCacheClosed
	}
	c.entries[key] = m
	n := len(c.entries)
	c.mu.Unlock()

	c.metrics.ObserveCompile(metrics.StatusOK, elapsed)
	c.metrics.SetCachedModules(n)
	log.WithFields(logrus.Fields{"bytes": len(raw), "elapsed": elapsed}).Debug("compiled plugin module")
	return nil
}

// acquire clones the cached entry for key. The clone is taken under the
// read lock so Close cannot drop the cache's handle in between.
func (c *ModuleCache) acquire(key Digest) (*CompiledModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false
	}
	m, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

func (c *ModuleCache) contains(key Digest) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close drops the cache's own handles. Artifacts still referenced by
// outstanding handles stay alive until those are released.
func (c *ModuleCache) Close(ctx context.Context) error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[Digest]*CompiledModule)
	c.closed = true
	c.mu.Unlock()

	var err error
	for _, m := range entries {
		err = multierr.Append(err, m.Release(ctx))
	}
	c.metrics.SetCachedModules(0)
	return err
}
