package plugin

// Reference is one configured entry of a transform chain: a compiled module
// plus the configuration for this instance.
type Reference struct {
	Module *CompiledModule
	Config Config
}

func NewReference(m *CompiledModule, cfg Config) Reference {
	return Reference{Module: m, Config: cfg}
}

// Name returns the plugin name of the referenced module.
func (r Reference) Name() string {
	if r.Module == nil {
		return ""
	}
	return r.Module.Name()
}
