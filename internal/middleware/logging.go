package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

type viewerIDKey struct{}

type errorCodeKey struct{}

// SetViewerID stores the authenticated viewer's ID in the context.
// Called by the auth middleware after validating the token.
func SetViewerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, viewerIDKey{}, id)
}

// GetViewerID retrieves the viewer ID from context. Returns "" for
// anonymous requests.
func GetViewerID(ctx context.Context) string {
	if id, ok := ctx.Value(viewerIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetErrorCode stores an error code in the context so the logging
// middleware can attach it to the completion entry.
func SetErrorCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context, or "".
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status, size,
// and a late-bound context for error-code propagation.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
	ctx         context.Context
}

func (rw *responseWriter) updateContext(ctx context.Context) {
	rw.ctx = ctx
}

type contextCarrier interface {
	updateContext(ctx context.Context)
}

type unwrapper interface {
	Unwrap() http.ResponseWriter
}

// UpdateResponseContext pushes a context back to the logging
// middleware's writer so values set inside a handler (the error code)
// reach the completion log entry. Context values added downstream are
// otherwise invisible upstream.
func UpdateResponseContext(w http.ResponseWriter, ctx context.Context) {
	for w != nil {
		if c, ok := w.(contextCarrier); ok {
			c.updateContext(ctx)
			return
		}
		u, ok := w.(unwrapper)
		if !ok {
			return
		}
		w = u.Unwrap()
	}
}

// WriteHeader records the first status code written; later calls are
// ignored to match net/http, which sends only the first status.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment. Production
// gets a JSON handler at info level; everything else gets a text
// handler at debug level.
func NewLogger(env string) *slog.Logger {
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
	return slog.New(handler)
}

// Logging logs one structured entry per completed request: method,
// path, status, latency, size, request ID, viewer ID when
// authenticated, and error_code for 4xx/5xx responses.
//
// Panicking handlers skip the log entry; place a recovery middleware
// outside Logging if that matters.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			latency := time.Since(start).Milliseconds()

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", latency),
				slog.Int("size", rw.size),
			}

			// Values set downstream (viewer identity, error codes)
			// surface through the writer's late-bound context.
			ctx := r.Context()
			if rw.ctx != nil {
				ctx = rw.ctx
			}

			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			if viewerID := GetViewerID(ctx); viewerID != "" {
				attrs = append(attrs, slog.String("viewer_id", viewerID))
			}
			if rw.statusCode >= 400 {
				if errorCode := GetErrorCode(ctx); errorCode != "" {
					attrs = append(attrs, slog.String("error_code", errorCode))
				}
			}

			switch {
			case rw.statusCode >= 500:
				logger.LogAttrs(r.Context(), slog.LevelError, "request completed", attrs...)
			case rw.statusCode >= 400:
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed", attrs...)
			default:
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}
