package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"freshdeal/respond"
)

const RequestIDHeader = "X-Request-Id"

// trackedResponse remembers what has already gone out on the wire, so the
// request log reports the real status and a late panic cannot rewrite it.
type trackedResponse struct {
	http.ResponseWriter
	status int
	size   int
}

func (t *trackedResponse) sent() bool { return t.status != 0 }

func (t *trackedResponse) WriteHeader(code int) {
	if t.sent() {
		return
	}
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackedResponse) Write(p []byte) (int, error) {
	if !t.sent() {
		t.WriteHeader(http.StatusOK)
	}
	n, err := t.ResponseWriter.Write(p)
	t.size += n
	return n, err
}

func (t *trackedResponse) Unwrap() http.ResponseWriter { return t.ResponseWriter }

// WithRequestID keeps an incoming request id or assigns a fresh UUID.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		r.Header.Set(RequestIDHeader, rid)
		w.Header().Set(RequestIDHeader, rid)
		next.ServeHTTP(w, r)
	})
}

// Observe logs one line per request and turns a handler panic into a 500. When
// the handler already started its response the status stays as sent and the
// panic is only logged.
func Observe(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tw := &trackedResponse{ResponseWriter: w}
		rlog := log.With("rid", r.Header.Get(RequestIDHeader))

		defer func() {
			if v := recover(); v != nil {
				rlog.Error("handler panicked",
					"panic", v,
					"path", r.URL.Path,
					"response_started", tw.sent(),
					"stack", string(debug.Stack()),
				)
				if !tw.sent() {
					respond.InternalError(tw)
				}
			}

			level := slog.LevelInfo
			if tw.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			if !tw.sent() {
				tw.status = http.StatusOK
			}
			rlog.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", tw.status,
				"bytes", tw.size,
				"took", time.Since(start),
			)
		}()

		next.ServeHTTP(tw, r)
	})
}

// Chain wraps h with request ids and request observation.
func Chain(log *slog.Logger, h http.Handler) http.Handler {
	return WithRequestID(Observe(log, h))
}
