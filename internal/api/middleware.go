package api

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/starinfinity/star-infinity-api/internal/gziputil"
)

type requestIDKey struct{}

// RequestIDFromContext returns the ID assigned to the current request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// responseRecorder remembers the status and size of a response.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *responseRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *responseRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// accessLog assigns the request ID, turns panics into a JSON 500 and logs
// one line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
		rec := &responseRecorder{ResponseWriter: w}

		defer func() {
			if rvr := recover(); rvr != nil {
				slog.Error("panic serving request", "request_id", id, "path", r.URL.Path, "panic", rvr) //nolint:gosec // structured logger, not format string
				if rec.status == 0 {
					writeError(rec, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				}
			}
			slog.Info("request", //nolint:gosec // structured logger, not format string
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"client", r.RemoteAddr,
				"status", rec.code(),
				"bytes", rec.written,
				"latency", time.Since(start),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}

// clientAddr replaces RemoteAddr with the client host named by X-Real-Ip or
// the first X-Forwarded-For hop. Values that are not IP addresses are ignored
// and the port is dropped either way.
func clientAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		candidate := r.Header.Get("X-Real-Ip")
		if candidate == "" {
			candidate, _, _ = strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		}
		if ip := net.ParseIP(strings.TrimSpace(candidate)); ip != nil {
			r.RemoteAddr = ip.String()
		} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			r.RemoteAddr = host
		}
		next.ServeHTTP(w, r)
	})
}

// recordHTTP updates the request counters for route.
func recordHTTP(method, route string, status int, start time.Time) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// operationMetrics labels huma requests by their registered path.
func operationMetrics(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)
	status := ctx.Status()
	if status == 0 {
		status = http.StatusOK
	}
	recordHTTP(ctx.Method(), ctx.Operation().Path, status, start)
}

// graphqlMetrics labels every GraphQL request with the "/graphql" route.
func graphqlMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		recordHTTP(r.Method, "/graphql", rec.code(), start)
	})
}

// gzipDecompressor transparently decompresses gzip request bodies, rejecting
// bodies that inflate past gziputil.MaxRequestSize.
func gzipDecompressor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") != "gzip" {
			next.ServeHTTP(w, r)
			return
		}
		data, err := gziputil.Decompress(r.Body, gziputil.MaxRequestSize)
		switch {
		case errors.Is(err, gziputil.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, "invalid gzip body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(data))
		r.ContentLength = int64(len(data))
		r.Header.Del("Content-Encoding")
		next.ServeHTTP(w, r)
	})
}

// acceptsGzip reports whether an Accept-Encoding value allows gzip.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}

// writeError writes an ErrorBody outside of huma.
func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = stdjson.NewEncoder(w).Encode(newErrorBody(code, msg))
}
