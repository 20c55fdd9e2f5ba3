package obs

import (
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// statusWriter remembers the status and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach Flush and deadlines.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// RequestContextMiddleware injects request correlation fields into context
// and echoes the request id back in X-Request-Id. The id comes from the
// client, then the W3C traceparent, then a fresh random one.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
		corr := Correlation{
			RequestID:   strings.TrimSpace(r.Header.Get("X-Request-Id")),
			TraceID:     extractTraceID(traceparent),
			Traceparent: traceparent,
		}
		if corr.RequestID == "" {
			corr.RequestID = corr.TraceID
		}
		if corr.RequestID == "" {
			corr.RequestID = newRequestID()
		}
		w.Header().Set("X-Request-Id", corr.RequestID)
		next.ServeHTTP(w, r.WithContext(WithCorrelation(r.Context(), corr)))
	})
}

// AccessLogMiddleware emits one structured event per request. Server errors
// log at warn and throttled requests at info so they show up in suite logs;
// everything else is debug.
func AccessLogMiddleware(pkg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.code()
		level := slog.LevelDebug
		switch {
		case status >= 500:
			level = slog.LevelWarn
		case status == http.StatusTooManyRequests:
			level = slog.LevelInfo
		}
		From(r.Context()).With("pkg", pkg).Log(r.Context(), level, "http_access",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"dur_ms", float64(time.Since(start).Microseconds())/1000,
			"req_bytes", max(r.ContentLength, 0),
			"resp_bytes", sw.bytes,
		)
	})
}

// extractTraceID returns the trace-id field of a traceparent header, or ""
// when the header is malformed or the id is all zeros.
func extractTraceID(traceparent string) string {
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	id := strings.ToLower(parts[1])
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) != 16 || strings.Trim(id, "0") == "" {
		return ""
	}
	return id
}
