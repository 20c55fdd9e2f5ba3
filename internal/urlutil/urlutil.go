// Package urlutil joins storefront URLs and resolves the scheme a request
// arrived on.
package urlutil

import (
	"net/http"
	"strings"
)

// Normalize trims whitespace and trailing slashes from a base URL.
func Normalize(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// Join builds an absolute URL from a base origin and a path. Absolute paths
// are returned unchanged.
func Join(base, path string) string {
	base = Normalize(base)
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

// Scheme reports "https" when r arrived over TLS directly or through a proxy
// that set X-Forwarded-Proto, and "http" otherwise.
func Scheme(r *http.Request) string {
	proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))
	if comma := strings.Index(proto, ","); comma >= 0 {
		proto = strings.TrimSpace(proto[:comma])
	}
	if proto == "http" || proto == "https" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
