package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog with domain-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// RequestLogger logs HTTP request details.
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// ScoreLogger logs a completed score computation.
func (l *Logger) ScoreLogger(actorID string, finalScore float64, events int, duration time.Duration) {
	l.Info("Score computed",
		"actor", actorID,
		"final_score", finalScore,
		"event_count", events,
		"duration_ms", duration.Milliseconds(),
	)
}
