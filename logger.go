package barq

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with the field names the engine's operations
// use consistently.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler falls back to a text handler on
// stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger returns a Logger that writes JSON to stderr at level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger returns a Logger that writes human-readable text to
// stderr at level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)}))}
}

func (l *Logger) LogAppendNode(ctx context.Context, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append_node failed", "id", id, "error", err)
		return
	}
	l.DebugContext(ctx, "append_node completed", "id", id)
}

func (l *Logger) LogAddEdge(ctx context.Context, from, to uint64, edgeType string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add_edge failed", "from", from, "to", to, "type", edgeType, "error", err)
		return
	}
	l.DebugContext(ctx, "add_edge completed", "from", from, "to", to, "type", edgeType)
}

func (l *Logger) LogSetEmbedding(ctx context.Context, id uint64, dim int, async bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "set_embedding failed", "id", id, "dimension", dim, "error", err)
		return
	}
	l.DebugContext(ctx, "set_embedding completed", "id", id, "dimension", dim, "async", async)
}

func (l *Logger) LogKNN(ctx context.Context, k, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "knn_search failed", "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "knn_search completed", "k", k, "results", results)
}

func (l *Logger) LogHybrid(ctx context.Context, start uint64, h, k, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "hybrid_query failed", "start", start, "h", h, "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "hybrid_query completed", "start", start, "h", h, "k", k, "results", results)
}

func (l *Logger) LogRecovery(ctx context.Context, recordsReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "WAL recovery failed", "records_replayed", recordsReplayed, "error", err)
		return
	}
	l.InfoContext(ctx, "WAL recovery completed", "records_replayed", recordsReplayed)
}

func (l *Logger) LogFlush(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed", "error", err)
		return
	}
	l.DebugContext(ctx, "flush completed")
}
