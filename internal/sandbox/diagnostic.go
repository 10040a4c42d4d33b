package sandbox

import (
	"github.com/sirupsen/logrus"

	"plugchain/internal/source"
)

// Plugin diagnostic levels.
const (
	LevelNote    = "note"
	LevelWarning = "warning"
	LevelError   = "error"
)

// PluginDiagnostic is a message reported by a plugin through
// __emit_diagnostics.
type PluginDiagnostic struct {
	Level   string      `msgpack:"level" json:"level"`
	Message string      `msgpack:"message" json:"message"`
	Span    source.Span `msgpack:"span,omitempty" json:"span,omitempty"`
}

func (d PluginDiagnostic) logLevel() logrus.Level {
	switch d.Level {
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarning:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}
