package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/care-payments/pkg/logger"
)

const (
	filtered = "[FILTERED]"

	// maxLoggedBody caps how much of a request or error response body is logged.
	maxLoggedBody = 8 << 10
)

// sensitiveKeys are matched as substrings of lower-cased header names and JSON keys.
var sensitiveKeys = []string{
	"payment_method",
	"token",
	"authorization",
	"secret",
	"api_key",
	"signature",
	"email",
	"bank",
	"account_number",
	"routing",
	"ssn",
}

// unloggedBodyPaths carry processor payloads with worker identity and banking details.
var unloggedBodyPaths = []string{
	"/webhooks/",
}

// LoggingMiddleware logs each request and its outcome through the request-scoped logger,
// which carries the trace id set by RequestID. Success response bodies are not logged
// because history and stats responses hold client data.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lg := logger.From(r.Context())

		logRequest(lg, r)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		logResponse(lg, r, rec, time.Since(start))
	})
}

// statusRecorder keeps the status code and the head of error response bodies.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
	body   bytes.Buffer
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	if s.status >= http.StatusBadRequest && s.body.Len() < maxLoggedBody {
		s.body.Write(b[:min(len(b), maxLoggedBody-s.body.Len())])
	}
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

func logRequest(lg *slog.Logger, r *http.Request) {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"headers", filterHeaders(r.Header),
	}

	if r.Body != nil && r.Body != http.NoBody {
		head, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
		if err == nil {
			// Downstream handlers still read the full body.
			r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}
			if skipBody(r.URL.Path) {
				attrs = append(attrs, "body", filtered)
			} else {
				attrs = append(attrs, "body", filterBody(head))
			}
		}
	}

	lg.Info("incoming request", attrs...)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func logResponse(lg *slog.Logger, r *http.Request, rec *statusRecorder, duration time.Duration) {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}

	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"duration_ms", duration.Milliseconds(),
		"response_size", rec.size,
	}

	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}
	if status >= http.StatusBadRequest {
		attrs = append(attrs, "body", filterBody(rec.body.Bytes()))
	}

	lg.Log(r.Context(), level, "response", attrs...)
}

func skipBody(path string) bool {
	for _, p := range unloggedBodyPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	for _, k := range sensitiveKeys {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

func filterHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// filterBody masks sensitive JSON keys at any depth. Truncated or non-JSON bodies are
// only logged when they mention nothing sensitive.
func filterBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > maxLoggedBody {
		return "[TRUNCATED]"
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		if isSensitive(string(body)) {
			return filtered
		}
		return string(body)
	}

	out, err := json.Marshal(filterJSON(data))
	if err != nil {
		return filtered
	}
	return string(out)
}

func filterJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = filtered
			} else {
				out[key] = filterJSON(value)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterJSON(item)
		}
		return out
	default:
		return v
	}
}
