package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so log aggregation can key on
// fields like request_id and credit_id.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
