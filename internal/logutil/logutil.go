// Package logutil renders HTTP headers and bodies for debug logs with
// credentials, cookies and session tokens masked.
package logutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// Redacted replaces any sensitive value in log output.
const Redacted = "[REDACTED]"

// DefaultMaxBodyBytes bounds how much of a body is logged.
const DefaultMaxBodyBytes = 2048

// IsSensitiveLogField reports whether a header or JSON key likely holds a
// credential.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "apikey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	case strings.Contains(normalized, "session"):
		return true
	default:
		return false
	}
}

// RedactHeaderValue redacts a header value when the key looks sensitive.
func RedactHeaderValue(key, value string) string {
	if IsSensitiveLogField(key) {
		return Redacted
	}
	return value
}

// FormatHeadersForLog returns stable, redacted header text for logs.
func FormatHeadersForLog(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := headers.Values(k)
		if len(values) == 0 {
			parts = append(parts, fmt.Sprintf("%s=<empty>", strings.ToLower(k)))
			continue
		}
		redacted := make([]string, len(values))
		for i, v := range values {
			redacted[i] = RedactHeaderValue(k, v)
		}
		parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), strings.Join(redacted, ", ")))
	}
	return strings.Join(parts, "; ")
}

// RedactBodyForLog masks sensitive fields of a JSON body at any depth.
// Non-JSON bodies and bodies that fail to parse come back unchanged.
func RedactBodyForLog(contentType string, body []byte) string {
	text := string(body)
	if !strings.Contains(strings.ToLower(contentType), "json") {
		return text
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return text
	}
	redactValue(payload)
	safe, err := json.Marshal(payload)
	if err != nil {
		return text
	}
	return string(safe)
}

func redactValue(v any) {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			if IsSensitiveLogField(k) {
				typed[k] = Redacted
				continue
			}
			redactValue(child)
		}
	case []any:
		for _, child := range typed {
			redactValue(child)
		}
	}
}

// FormatBodyForLog truncates and redacts body text for safe logging.
// Truncation happens before redaction, so a cut JSON body is logged raw
// only up to maxBytes.
func FormatBodyForLog(contentType string, body []byte, maxBytes int) string {
	if len(body) == 0 {
		return ""
	}
	if maxBytes > 0 && len(body) > maxBytes {
		return TruncateForLog(string(body[:maxBytes]), maxBytes) + " [truncated]"
	}
	return RedactBodyForLog(contentType, body)
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}

// RequestAttrs describes an outgoing request for a structured log line.
func RequestAttrs(req *http.Request, body []byte) []any {
	return []any{
		slog.String("method", req.Method),
		slog.String("url", req.URL.Redacted()),
		slog.String("headers", FormatHeadersForLog(req.Header)),
		slog.String("body", FormatBodyForLog(req.Header.Get("Content-Type"), body, DefaultMaxBodyBytes)),
	}
}

// ResponseAttrs describes a received response for a structured log line.
func ResponseAttrs(resp *http.Response, body []byte) []any {
	return []any{
		slog.Int("status", resp.StatusCode),
		slog.String("headers", FormatHeadersForLog(resp.Header)),
		slog.String("body", FormatBodyForLog(resp.Header.Get("Content-Type"), body, DefaultMaxBodyBytes)),
	}
}
