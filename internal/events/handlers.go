package events

import (
	"fmt"
	"io"
	"os"
)

// LogConfig configures the logging handler.
type LogConfig struct {
	// Writer is where logs are written (default: os.Stderr).
	Writer io.Writer

	// IncludePayload includes the event payload in log output.
	IncludePayload bool
}

// LogHandler returns a handler that writes one line per event to the
// configured writer. Format: "[type] id".
func LogHandler(cfg LogConfig) Handler {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	return func(e Event) {
		if cfg.IncludePayload && e.Payload != nil {
			fmt.Fprintf(cfg.Writer, "[%s] %s payload=%v\n", e.Type, e.ID, e.Payload)
			return
		}
		fmt.Fprintf(cfg.Writer, "[%s] %s\n", e.Type, e.ID)
	}
}
