package logger

import (
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	size, err := w.ResponseWriter.Write(b)
	w.size += size
	return size, err
}

// Flush implements http.Flusher so the wrapper can sit in front of SSE
// handlers without breaking streaming.
func (w *responseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// HTTPMiddleware creates a logging middleware for HTTP requests.
func HTTPMiddleware(l *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := l.WithHTTPRequest(r)
			reqLogger.Debug("Request received")

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			respLogger := reqLogger.WithDuration(duration).WithFields(map[string]interface{}{
				"status": wrapped.status,
				"size":   wrapped.size,
			})

			switch {
			case wrapped.status >= 500:
				respLogger.Error("Request failed with server error")
			case wrapped.status >= 400:
				respLogger.Warn("Request failed with client error")
			default:
				respLogger.Info("Request completed")
			}
		})
	}
}

// SSEMiddleware creates a logging middleware for streaming endpoints. It logs
// connect and disconnect with the connection duration instead of a single
// completion line, since streaming responses stay open for the life of the
// upstream token stream.
func SSEMiddleware(l *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sseLogger := l.WithHTTPRequest(r).WithField("connection_type", "sse")
			sseLogger.Info("Stream connection initiated")

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			sseLogger.WithDuration(time.Since(start)).WithFields(map[string]interface{}{
				"status": wrapped.status,
				"size":   wrapped.size,
			}).Info("Stream connection closed")
		})
	}
}
