//go:build plugchain_nosandbox

package transform

// SandboxSupported reports whether this build can execute plugins.
const SandboxSupported = false
