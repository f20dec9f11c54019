// Package cli provides utility functions for command line interface applications.
package cli

import (
	"log/slog"
	"os"

	"github.com/taskbox/taskbox/internal/constants"
)

// SetVerbosity sets the logging level for the default logger from the verbose
// flag count: warnings by default, INFO with -v, DEBUG with -vv.
func SetVerbosity(level int) {
	slog.SetLogLoggerLevel(getLevel(level))
}

// SetSlog sets the logging level and format for the default logger.
func SetSlog(level int, jsonLogs bool) {
	slogLevel := getLevel(level)
	if jsonLogs {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})))
		return
	}

	SetVerbosity(level)
}

func getLevel(level int) slog.Level {
	switch level {
	case 0:
		return constants.DefaultLogLevel
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
