package driver

import (
	"github.com/ternarybob/arbor"
)

// NewLogger returns an arbor logger for a cmd/* front end, leveled by the
// deva.toml "verbosity" setting ("quiet", "info", "debug"). Core
// pkg/vm and pkg/compiler stay logging-free; only the cmd/devac,
// cmd/devai and cmd/devash drivers log (cmd/devadb and pkg/debugger do
// not), and only at start/stop/error boundaries, never per instruction.
func NewLogger(verbosity string) arbor.ILogger {
	level := arbor.InfoLevel
	switch verbosity {
	case "quiet":
		level = arbor.ErrorLevel
	case "debug":
		level = arbor.DebugLevel
	}
	return arbor.Logger().WithLevel(level)
}
