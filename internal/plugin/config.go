package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var nullConfig = []byte("null")

// Config is the opaque JSON document configuring one plugin instance. The
// host never interprets it beyond validation; it is handed to the plugin
// verbatim.
type Config struct {
	raw []byte
}

// ParseConfig validates raw JSON. Empty input yields the null config.
func ParseConfig(raw []byte) (Config, error) {
	if len(raw) == 0 {
		return Config{}, nil
	}
	if !gjson.ValidBytes(raw) {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidConfig, truncate(raw, 64))
	}
	return Config{raw: append([]byte(nil), raw...)}, nil
}

// ConfigFromValue encodes a decoded document (for example a TOML table).
func ConfigFromValue(v any) (Config, error) {
	if v == nil {
		return Config{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return Config{raw: raw}, nil
}

// Bytes returns the JSON text; the null config renders as "null".
func (c Config) Bytes() []byte {
	if len(c.raw) == 0 {
		return nullConfig
	}
	return c.raw
}

func (c Config) String() string { return string(c.Bytes()) }

func (c Config) IsNull() bool {
	return len(c.raw) == 0 || gjson.ParseBytes(c.raw).Type == gjson.Null
}

// Get looks up a gjson path, e.g. "exclude.0".
func (c Config) Get(path string) gjson.Result {
	return gjson.GetBytes(c.Bytes(), path)
}

// Set returns a copy of the config with path set to value.
func (c Config) Set(path string, value any) (Config, error) {
	base := c.raw
	if c.IsNull() {
		base = []byte("{}")
	}
	out, err := sjson.SetBytes(append([]byte(nil), base...), path, value)
	if err != nil {
		return Config{}, fmt.Errorf("%w: set %s: %v", ErrInvalidConfig, path, err)
	}
	return Config{raw: out}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
