package logger

import "log/slog"

// Discard returns a logger that drops every record. It is the default for
// components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
