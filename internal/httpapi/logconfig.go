package httpapi

import "github.com/rs/zerolog"

// parseLoggingLevel maps the five spec-level names onto zerolog's level
// enum the same way internal/logging does, duplicated here rather than
// exported from that package to keep its level-parsing private to startup.
func parseLoggingLevel(s string) (zerolog.Level, bool) {
	switch s {
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warning":
		return zerolog.WarnLevel, true
	case "error", "critical":
		return zerolog.ErrorLevel, true
	default:
		return zerolog.InfoLevel, false
	}
}
