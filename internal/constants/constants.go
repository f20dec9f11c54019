// Package constants is responsible for defining the constants used in the application.
package constants

import "log/slog"

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the TaskBox service command.
	CmdName = "taskbox-service"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// WelcomeMessage is returned by the root endpoint.
	WelcomeMessage = "Welcome to the TaskBox API"
)

// Authentication defaults.
const (
	// DefaultAccessTokenExpiry is the default lifetime of an access token.
	DefaultAccessTokenExpiry = 30 // minutes

	// DefaultMinPasswordLength is the minimum accepted password length at registration.
	DefaultMinPasswordLength = 8
)

// Pagination defaults.
const (
	// DefaultPageSize is the number of todos returned when no limit is given.
	DefaultPageSize = 100

	// MaxPageSize is the maximum number of todos returned per page.
	MaxPageSize = 100
)
