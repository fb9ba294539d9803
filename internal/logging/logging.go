package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger. Production gets JSON output for log
// aggregation, everything else gets the readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithTurn returns a logger carrying the identifiers of one conversation turn.
func WithTurn(part, userID, sessionToken string) *slog.Logger {
	return slog.With(
		"part", part,
		"user_id", userID,
		"session_token", sessionToken,
	)
}
