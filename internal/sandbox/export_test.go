package sandbox

// Fixtures for the external chain tests.
var (
	EchoPlugin   = echoPlugin
	TrapPlugin   = trapPlugin
	ConfigPlugin = configPlugin
)
