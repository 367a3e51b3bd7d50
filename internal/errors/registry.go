package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration errors (E100-E119)

	"E100": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration value",
		Detail:     "An environment variable holds a value the server cannot use.",
		Suggestion: "Check the CODEPAIR_* environment variables against the documented formats.",
	},
	"E101": {
		Category:   CategoryConfig,
		Message:    "Invalid listen address",
		Detail:     "CODEPAIR_ADDR must be a host:port pair, for example :3001 or 0.0.0.0:8080.",
		Suggestion: "Set CODEPAIR_ADDR to a valid host:port pair.",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "Invalid log level",
		Detail:     "CODEPAIR_LOG_LEVEL must be one of: debug, info, warn, error.",
		Suggestion: "Set CODEPAIR_LOG_LEVEL to a supported level or unset it for the default (info).",
	},
	"E103": {
		Category:   CategoryConfig,
		Message:    "Invalid duration",
		Detail:     "Duration values use Go syntax, for example 10s or 1m30s.",
		Suggestion: "Use a Go duration string such as 10s.",
	},

	// Server errors (E110-E129)

	"E110": {
		Category:   CategoryServer,
		Message:    "Server failed to start",
		Detail:     "The relay could not bind its listen address.",
		Suggestion: "Check that the port is free and the address is routable on this host.",
	},
}
