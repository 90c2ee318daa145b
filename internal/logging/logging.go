// Package logging builds the structured loggers used across the cache
// engine. Output is logfmt with timestamp and caller, filtered by the
// configured level.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// New returns a leveled logfmt logger writing to w. Unknown level names
// fall back to info.
func New(w io.Writer, levelName string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, allow(levelName))
	return log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)
}

// NewDefault returns the standard logger for the configured level,
// writing to stderr.
func NewDefault(levelName string) log.Logger {
	return New(os.Stderr, levelName)
}

func allow(levelName string) level.Option {
	switch strings.ToUpper(levelName) {
	case "DEBUG":
		return level.AllowDebug()
	case "WARN", "WARNING":
		return level.AllowWarn()
	case "ERROR":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
