package logger

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoggingConfig mirrors config.LoggingConfig to avoid a circular import.
// Callers populate it from config.LoggingConfig plus the process name.
type LoggingConfig struct {
	Level     string
	Output    string // stdout (default), file, cloudwatch
	Service   string // stamped on every entry, e.g. "api-server"
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
	CWGroup   string
	CWStream  string
	CWRegion  string
}

type contextKey string

const (
	loggerKey        contextKey = "logger"
	correlationIDKey contextKey = "correlation_id"
)

// New creates a JSON zerolog.Logger writing to stdout at the given level.
// Invalid level strings fall back to info.
func New(level string) zerolog.Logger {
	return build(os.Stdout, level, "")
}

// NewFromConfig creates a zerolog.Logger from a LoggingConfig. The output
// writer is selected by cfg.Output: "file" rotates via lumberjack,
// "cloudwatch" ships to CloudWatch Logs, anything else writes to stdout.
func NewFromConfig(cfg LoggingConfig) zerolog.Logger {
	var writer io.Writer
	switch cfg.Output {
	case "file":
		writer = NewFileWriter(FileConfig{
			Path:      cfg.FilePath,
			MaxSizeMB: cfg.MaxSizeMB,
			MaxFiles:  cfg.MaxFiles,
		})
	case "cloudwatch":
		writer = NewCloudWatchWriter(CloudWatchConfig{
			Group:  cfg.CWGroup,
			Stream: cfg.CWStream,
			Region: cfg.CWRegion,
		})
	default:
		writer = os.Stdout
	}
	return build(writer, cfg.Level, cfg.Service)
}

func build(w io.Writer, level, service string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	return ctx.Logger()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithCorrelationID stores a correlation ID in the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext retrieves the correlation ID from the context.
// Returns an empty string if not set.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext retrieves the logger from the context, attaching the
// correlation ID when one is present. Falls back to a default info-level
// logger when the context carries none.
func FromContext(ctx context.Context) zerolog.Logger {
	log, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		log = New("info")
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		log = log.With().Str("correlation_id", id).Logger()
	}
	return log
}

// NewCorrelationID generates a new UUID-based correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}
