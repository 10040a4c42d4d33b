// Package config discovers and decodes plugchain.toml and turns its plugin
// table into a compiled chain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"plugchain/internal/metadata"
)

// ManifestName is the file FindManifest looks for.
const ManifestName = "plugchain.toml"

var (
	ErrNoManifest      = errors.New("no " + ManifestName + " found")
	ErrInvalidMode     = errors.New("invalid [transform].mode")
	ErrPluginName      = errors.New("[[plugin]] entry without name")
	ErrPluginPath      = errors.New("[[plugin]] entry without path")
	ErrUnknownKeys     = errors.New("unknown keys")
	ErrUnknownPlugin   = errors.New("override targets unknown plugin")
	ErrInvalidOverride = errors.New("invalid override")
)

// Manifest is a decoded plugchain.toml.
type Manifest struct {
	Path string
	Root string

	Transform TransformSection `toml:"transform"`
	Plugins   []PluginEntry    `toml:"plugin"`
}

// TransformSection is the [transform] table.
type TransformSection struct {
	Mode         string            `toml:"mode"`
	Experimental map[string]string `toml:"experimental"`
}

// PluginEntry is one [[plugin]] table. Order in the file is chain order.
// The same name may appear more than once, usually with different configs.
type PluginEntry struct {
	Name   string         `toml:"name"`
	Path   string         `toml:"path"`
	Config map[string]any `toml:"config"`
}

// FindManifest walks up from startDir to locate plugchain.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the manifest at explicit, or the nearest one above
// startDir when explicit is empty.
func Discover(explicit, startDir string) (*Manifest, error) {
	path := explicit
	if path == "" {
		found, ok, err := FindManifest(startDir)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoManifest
		}
		path = found
	}
	return LoadManifest(path)
}

// LoadManifest decodes and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: %w: %s", path, ErrUnknownKeys, strings.Join(keys, ", "))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	m.Path = abs
	m.Root = filepath.Dir(abs)

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	m.Transform.Mode = strings.TrimSpace(m.Transform.Mode)
	switch m.Transform.Mode {
	case "":
		m.Transform.Mode = metadata.EnvDevelopment
	case metadata.EnvDevelopment, metadata.EnvProduction:
	default:
		return fmt.Errorf("%w %q (expected %s|%s)", ErrInvalidMode, m.Transform.Mode,
			metadata.EnvDevelopment, metadata.EnvProduction)
	}

	for i := range m.Plugins {
		p := &m.Plugins[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Path = strings.TrimSpace(p.Path)
		if p.Name == "" {
			return fmt.Errorf("%w (#%d)", ErrPluginName, i+1)
		}
		if p.Path == "" {
			return fmt.Errorf("%w %q", ErrPluginPath, p.Name)
		}
	}
	return nil
}

// PluginPath resolves an entry's path against the manifest directory.
func (m *Manifest) PluginPath(p PluginEntry) string {
	path := filepath.FromSlash(p.Path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Root, path)
}

// PluginNames lists the chain in order.
func (m *Manifest) PluginNames() []string {
	names := make([]string, len(m.Plugins))
	for i, p := range m.Plugins {
		names[i] = p.Name
	}
	return names
}

// occurrences returns how many entries carry name.
func (m *Manifest) occurrences(name string) int {
	n := 0
	for _, p := range m.Plugins {
		if p.Name == name {
			n++
		}
	}
	return n
}
