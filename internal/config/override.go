package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Override replaces one value inside a plugin's configuration:
// "strip-console.exclude.0=warn". A plugin listed more than once is
// addressed as a whole by name, or one entry at a time as "name#2".
type Override struct {
	Plugin string
	// Occurrence is the 1-based position among entries named Plugin;
	// zero targets all of them.
	Occurrence int
	Path       string // gjson/sjson path inside the config document
	Value      any
}

// String renders the override target the way it is written on the command line.
func (o Override) String() string {
	if o.Occurrence == 0 {
		return o.Plugin
	}
	return o.Plugin + "#" + strconv.Itoa(o.Occurrence)
}

func (o Override) matches(name string, occurrence int) bool {
	return o.Plugin == name && (o.Occurrence == 0 || o.Occurrence == occurrence)
}

// ParseOverride parses "plugin.path=value" or "plugin#N.path=value". Values that are valid JSON
// (numbers, booleans, arrays, quoted strings) keep their JSON type; anything
// else is taken as a plain string.
func ParseOverride(s string) (Override, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		return Override{}, fmt.Errorf("%w %q: expected plugin.key=value", ErrInvalidOverride, s)
	}
	plugin, path, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || plugin == "" || path == "" {
		return Override{}, fmt.Errorf("%w %q: expected plugin.key=value", ErrInvalidOverride, s)
	}

	occurrence := 0
	if name, nth, ok := strings.Cut(plugin, "#"); ok {
		n, err := strconv.Atoi(nth)
		if err != nil || n < 1 || name == "" {
			return Override{}, fmt.Errorf("%w %q: expected plugin#N with N >= 1", ErrInvalidOverride, s)
		}
		plugin, occurrence = name, n
	}

	var value any = raw
	if gjson.Valid(raw) {
		value = gjson.Parse(raw).Value()
	}
	return Override{Plugin: plugin, Occurrence: occurrence, Path: path, Value: value}, nil
}

// ParseOverrides parses every entry of ss.
func ParseOverrides(ss []string) ([]Override, error) {
	out := make([]Override, 0, len(ss))
	for _, s := range ss {
		o, err := ParseOverride(s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
