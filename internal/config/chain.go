package config

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"plugchain/internal/plugin"
)

// Chain is the compiled plugin list of a manifest.
type Chain struct {
	Refs []plugin.Reference
}

// Release drops every module handle held by the chain.
func (c *Chain) Release(ctx context.Context) error {
	var err error
	for _, ref := range c.Refs {
		err = multierr.Append(err, ref.Module.Release(ctx))
	}
	return err
}

// BuildChain reads and compiles every plugin of m through cache, in manifest
// order, applying overrides to their configuration.
func BuildChain(ctx context.Context, m *Manifest, cache *plugin.ModuleCache, overrides []Override) (*Chain, error) {
	for _, o := range overrides {
		if n := m.occurrences(o.Plugin); n == 0 || o.Occurrence > n {
			return nil, fmt.Errorf("%w %q", ErrUnknownPlugin, o.String())
		}
	}

	chain := &Chain{Refs: make([]plugin.Reference, 0, len(m.Plugins))}
	seen := make(map[string]int, len(m.Plugins))
	for _, p := range m.Plugins {
		seen[p.Name]++
		cfg, err := entryConfig(p, seen[p.Name], overrides)
		if err != nil {
			_ = chain.Release(ctx)
			return nil, err
		}
		raw, err := os.ReadFile(m.PluginPath(p))
		if err != nil {
			_ = chain.Release(ctx)
			return nil, fmt.Errorf("plugin %q: %w", p.Name, err)
		}
		mod, err := cache.CompileOrGet(ctx, p.Name, raw)
		if err != nil {
			_ = chain.Release(ctx)
			return nil, err
		}
		chain.Refs = append(chain.Refs, plugin.NewReference(mod, cfg))
	}
	return chain, nil
}

func entryConfig(p PluginEntry, occurrence int, overrides []Override) (plugin.Config, error) {
	var cfg plugin.Config
	if p.Config != nil {
		var err error
		if cfg, err = plugin.ConfigFromValue(p.Config); err != nil {
			return plugin.Config{}, fmt.Errorf("plugin %q: %w", p.Name, err)
		}
	}
	for _, o := range overrides {
		if !o.matches(p.Name, occurrence) {
			continue
		}
		var err error
		if cfg, err = cfg.Set(o.Path, o.Value); err != nil {
			return plugin.Config{}, fmt.Errorf("plugin %q: %w", p.Name, err)
		}
	}
	return cfg, nil
}
