// Package metadata builds the read-only context every plugin in a chain
// observes: the file being transformed, the build mode and any experimental
// key/value pairs configured for the session.
package metadata

import (
	"maps"

	"plugchain/internal/serialized"
)

// Build modes understood by plugins.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Keys resolved by Context.Get.
const (
	KeyFilename = "filename"
	KeyEnv      = "env"
)

// Context is shared by pointer across one chain and never mutated after Build.
type Context struct {
	Filename     *string           `msgpack:"filename"`
	Env          string            `msgpack:"env"`
	Experimental map[string]string `msgpack:"experimental,omitempty"`
}

// Build assembles a Context. extra is copied, so later changes by the
// caller do not leak into a running chain.
func Build(fileName *string, env string, extra map[string]string) *Context {
	ctx := &Context{Env: env}
	if fileName != nil {
		name := *fileName
		ctx.Filename = &name
	}
	if len(extra) > 0 {
		ctx.Experimental = maps.Clone(extra)
	}
	return ctx
}

// Get resolves a context key. Well-known keys take precedence over
// experimental entries with the same name.
func (c *Context) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	switch key {
	case KeyFilename:
		if c.Filename == nil {
			return "", false
		}
		return *c.Filename, true
	case KeyEnv:
		return c.Env, true
	}
	v, ok := c.Experimental[key]
	return v, ok
}

// Marshal returns the boundary form handed to plugins.
func (c *Context) Marshal() (serialized.Bytes, error) {
	return serialized.Marshal(c)
}
