// Package logging configures the zerolog logger shared by every component
// of the engine. Grounded on cuemby/warren's pkg/log: a global logger
// configured once at process start, and per-component child loggers
// obtained by name rather than passed around as a field threaded through
// every constructor.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors the handful of levels the engine actually distinguishes.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the process-wide logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

var base zerolog.Logger

func init() {
	Init(Config{Level: InfoLevel})
}

// Init (re)configures the process-wide base logger. Safe to call more than
// once; later calls replace the base used by subsequent For() calls.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		base = zerolog.New(output).With().Timestamp().Logger()
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// For returns a child logger tagged with the given component name, e.g.
// logging.For("store") or logging.For("workspace.update").
func For(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
