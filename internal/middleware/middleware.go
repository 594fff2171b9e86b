package middleware

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/avolkhin/linkcut/internal/auth"
)

// ContextKey is the type for request context keys set by this package.
type ContextKey string

// UserIDKey carries the session owner ID through the request context.
const UserIDKey ContextKey = "userID"

// CookieName is the session identity cookie.
const CookieName = "auth_token"

type (
	loggingResponseWriter struct {
		http.ResponseWriter
		responseData *responseData
	}

	responseData struct {
		status int
		size   int
	}

	gzipWriter struct {
		http.ResponseWriter
		Writer io.Writer
	}

	// Middleware wraps a handler with one concern.
	Middleware func(http.Handler, *zap.SugaredLogger) http.Handler
)

func (w gzipWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

// Conveyor applies the middlewares to the handler in order.
func Conveyor(h http.Handler, sugar *zap.SugaredLogger, middlewares ...Middleware) http.Handler {
	for _, middleware := range middlewares {
		h = middleware(h, sugar)
	}
	return h
}

// UserID extracts the session owner ID from the context; empty means the
// request is anonymous.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSession validates the identity cookie issued by the session layer and
// puts the owner ID on the request context. Requests without a valid cookie
// pass through as anonymous; the session concern itself stays external.
func WithSession(am *auth.Manager) Middleware {
	return func(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil {
				h.ServeHTTP(w, r)
				return
			}

			userID, err := am.GetUserID(cookie.Value)
			if err != nil {
				sugar.Debugw("ignoring invalid session cookie", "error", err)
				h.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteWithCompression gzips JSON responses when the client accepts it.
func WriteWithCompression(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acceptEncodingValues := r.Header.Values("Accept-Encoding")
		target := "gzip"
		found := false

		for _, encoding := range acceptEncodingValues {
			if encoding == target {
				found = true
				break
			}
		}

		if !found {
			h.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType != "application/json" && contentType != "text/html" {
			h.ServeHTTP(w, r)
			return
		}

		gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			sugar.Error("failed to create gzip writer", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		h.ServeHTTP(gzipWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

// ReadWithCompression transparently decompresses gzipped request bodies.
func ReadWithCompression(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentEncodingValues := r.Header.Values("Content-Encoding")
		target := "gzip"
		found := false

		for _, encoding := range contentEncodingValues {
			if encoding == target {
				found = true
				break
			}
		}

		if !found {
			h.ServeHTTP(w, r)
			return
		}

		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			sugar.Error("failed to create gzip reader", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer gz.Close()

		newReq := r.Clone(r.Context())
		newReq.Body = gz
		newReq.ContentLength = -1

		h.ServeHTTP(w, newReq)
	})
}

// WithLogging records uri, method, status, duration and response size for
// every request.
func WithLogging(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rd := &responseData{
			status: 0,
			size:   0,
		}

		lw := loggingResponseWriter{
			ResponseWriter: w,
			responseData:   rd,
		}
		h.ServeHTTP(&lw, r)

		duration := time.Since(start)

		sugar.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"status", rd.status,
			"duration", duration,
			"size", rd.size,
		)
	})
}

func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}
