package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production and LOG_FORMAT=json
// get structured JSON for log shipping; anything else gets the text
// handler for local reading. Source locations are attached outside
// production where the overhead does not matter.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	switch {
	case cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()):
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	}
	return slog.New(handler).With(slog.String("app", "wrangler"))
}
