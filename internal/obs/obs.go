// Package obs configures structured logging for the storefront and the
// end-to-end suite and carries per-request / per-run correlation fields.
package obs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type correlationContextKey struct{}

// Correlation carries identifiers attached to every log line of a request or
// of a single flow run against one browser target.
type Correlation struct {
	RequestID   string
	TraceID     string
	Traceparent string
	Flow        string
	Target      string
}

var (
	loggerMu sync.RWMutex
	logger   *slog.Logger
	logLevel = new(slog.LevelVar)
)

// Init configures the global structured logger.
func Init() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger != nil {
		return
	}
	logger = newLogger(os.Stderr)
	slog.SetDefault(logger)
}

// InitFile configures the global logger to write to stderr and to a
// timestamped test_logs_YYYYMMDD_HHMMSS.log file inside dir. The returned
// function closes the file and restores a stderr-only logger.
func InitFile(dir string, now time.Time) (string, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("test_logs_%s.log", now.Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("open log file: %w", err)
	}

	loggerMu.Lock()
	logger = newLogger(io.MultiWriter(os.Stderr, f))
	slog.SetDefault(logger)
	loggerMu.Unlock()

	closeFn := func() error {
		loggerMu.Lock()
		logger = newLogger(os.Stderr)
		slog.SetDefault(logger)
		loggerMu.Unlock()
		return f.Close()
	}
	return path, closeFn, nil
}

// SetLevel changes the minimum level of the global logger.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutputForTests overrides the global logger output for tests.
func SetOutputForTests(w io.Writer) func() {
	loggerMu.Lock()
	prev := logger
	logger = newLogger(w)
	slog.SetDefault(logger)
	loggerMu.Unlock()

	return func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		if prev != nil {
			logger = prev
		} else {
			logger = newLogger(os.Stderr)
		}
		slog.SetDefault(logger)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				t, ok := attr.Value.Any().(time.Time)
				if ok {
					return slog.String(slog.TimeKey, t.UTC().Format(time.RFC3339Nano))
				}
			}
			return attr
		},
	})
	return slog.New(handler)
}

func globalLogger() *slog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Pkg returns a logger tagged with package name.
func Pkg(pkg string) *slog.Logger {
	return globalLogger().With("pkg", pkg)
}

// From returns a logger with correlation fields from context.
func From(ctx context.Context) *slog.Logger {
	l := globalLogger()
	attrs := correlationAttrs(CorrelationFromContext(ctx))
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// WithRun tags the context with the flow and target being exercised.
func WithRun(ctx context.Context, flow, target string) context.Context {
	return WithCorrelation(ctx, Correlation{Flow: flow, Target: target})
}

// WithCorrelation stores correlation fields in context. Empty fields keep
// any value already present.
func WithCorrelation(ctx context.Context, corr Correlation) context.Context {
	existing := CorrelationFromContext(ctx)
	if corr.RequestID != "" {
		existing.RequestID = corr.RequestID
	}
	if corr.TraceID != "" {
		existing.TraceID = corr.TraceID
	}
	if corr.Traceparent != "" {
		existing.Traceparent = corr.Traceparent
	}
	if corr.Flow != "" {
		existing.Flow = corr.Flow
	}
	if corr.Target != "" {
		existing.Target = corr.Target
	}
	return context.WithValue(ctx, correlationContextKey{}, existing)
}

// CorrelationFromContext returns correlation fields from context.
func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	corr, ok := ctx.Value(correlationContextKey{}).(Correlation)
	if !ok {
		return Correlation{}
	}
	return corr
}

func correlationAttrs(corr Correlation) []any {
	attrs := make([]any, 0, 10)
	if corr.RequestID != "" {
		attrs = append(attrs, "request_id", corr.RequestID)
	}
	if corr.TraceID != "" {
		attrs = append(attrs, "trace_id", corr.TraceID)
	}
	if corr.Traceparent != "" {
		attrs = append(attrs, "traceparent", corr.Traceparent)
	}
	if corr.Flow != "" {
		attrs = append(attrs, "flow", corr.Flow)
	}
	if corr.Target != "" {
		attrs = append(attrs, "target", corr.Target)
	}
	return attrs
}

func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "req-fallback"
	}
	return "req-" + hex.EncodeToString(buf)
}
