package observability

import (
	"github.com/rs/zerolog"

	logs "github.com/danmuck/wlprobe/internal/logging"
)

// ComponentLogger derives a logger tagged with the component name from the
// process logger.
func ComponentLogger(component string) zerolog.Logger {
	return logs.Logger().With().Str("component", component).Logger()
}
