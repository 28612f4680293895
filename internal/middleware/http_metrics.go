package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath collapses dynamic path segments into route patterns so
// metric label cardinality stays bounded. /posts/abc123 becomes
// /posts/{id}.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":             true,
		"/feed":         true,
		"/posts":        true,
		"/ws/feed":      true,
		"/health":       true,
		"/health/ready": true,
		"/metrics":      true,
	}
	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/posts/") {
		parts := strings.Split(path, "/")
		// /posts/{id}/like, /posts/{id}/save and their inverses
		if len(parts) == 4 {
			switch parts[3] {
			case "like", "unlike", "save", "unsave", "moderation":
				return "/posts/{id}/" + parts[3]
			}
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/posts/{id}"
		}
	}

	// Unknown routes pass through unchanged.
	return path
}

// metricsResponseWriter captures status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer so UpdateResponseContext can
// reach the logging layer through this wrapper.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// HTTPMetrics records duration, sizes, and counts per request. Health
// probes are excluded to keep the series useful.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/health/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
