// Package logging configures the zerolog logger used by the layerpack CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Level is one of the plugin's log level words, quiet to loud.
type Level string

const (
	LevelNone    Level = "none"
	LevelInfo    Level = "info"
	LevelVerbose Level = "verbose"
	LevelDebug   Level = "debug"
)

// ParseLevel parses a level word. An empty string means info.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "", LevelInfo:
		return LevelInfo, nil
	case LevelNone:
		return LevelNone, nil
	case LevelVerbose:
		return LevelVerbose, nil
	case LevelDebug:
		return LevelDebug, nil
	default:
		return "", fmt.Errorf("unknown log level %q (expected none, info, verbose, or debug)", s)
	}
}

// ZerologLevel maps a level word onto zerolog. Verbose lines are logged at
// debug and debug lines at trace.
func (l Level) ZerologLevel() zerolog.Level {
	switch l {
	case LevelNone:
		return zerolog.Disabled
	case LevelVerbose:
		return zerolog.DebugLevel
	case LevelDebug:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Enabled reports whether a line at want would be emitted under l.
func (l Level) Enabled(want Level) bool {
	return rank(l) >= rank(want) && want != LevelNone
}

func rank(l Level) int {
	switch l {
	case LevelInfo:
		return 1
	case LevelVerbose:
		return 2
	case LevelDebug:
		return 3
	default:
		return 0
	}
}

// Setup installs a console logger on w as the global logger and returns it.
// Every line carries the run id so concurrent layer work can be told apart.
func Setup(w io.Writer, level Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level.ZerologLevel())

	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !isTerminal(w),
		TimeFormat: "15:04:05",
	}

	log.Logger = zerolog.New(console).
		Level(level.ZerologLevel()).
		With().
		Timestamp().
		Str("component", "layerpack").
		Str("run_id", uuid.NewString()).
		Logger()

	return log.Logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
