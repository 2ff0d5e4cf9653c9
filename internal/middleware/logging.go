package middleware

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID. An incoming value is kept so IDs
// can be correlated across proxies; otherwise one is generated.
const RequestIDHeader = "X-Request-ID"

// responseWriter records the status code and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged.
	SkipPaths []string
	// LogHealthChecks controls logging of /health and /livez.
	LogHealthChecks bool
}

// DefaultLoggingConfig logs everything except the metrics endpoint.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health": true,
	"/livez":  true,
}

// accessEntry is one line of the access log.
type accessEntry struct {
	at        time.Time
	clientIP  string
	method    string
	uriStem   string
	uriQuery  string
	status    int
	bytes     int64
	elapsed   time.Duration
	userAgent string
	referer   string
	requestID string
}

// String renders the entry in W3C Extended Log Format:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(User-Agent) cs(Referer) x-request-id
func (e accessEntry) String() string {
	fields := []string{
		e.at.Format("2006-01-02"),
		e.at.Format("15:04:05"),
		orDash(sanitizeLogField(e.clientIP)),
		sanitizeLogField(e.method),
		sanitizeLogField(e.uriStem),
		orDash(sanitizeLogField(e.uriQuery)),
		strconv.Itoa(e.status),
		strconv.FormatInt(e.bytes, 10),
		strconv.FormatInt(e.elapsed.Milliseconds(), 10),
		orDash(escapeW3CField(sanitizeLogField(e.userAgent))),
		orDash(escapeW3CField(sanitizeLogField(e.referer))),
		orDash(sanitizeLogField(e.requestID)),
	}
	return strings.Join(fields, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Logger returns middleware that writes an access log line per request and
// tags every response with a request ID.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)

			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			entry := accessEntry{
				at:        time.Now().UTC(),
				clientIP:  getClientIP(r),
				method:    r.Method,
				uriStem:   r.URL.Path,
				uriQuery:  r.URL.RawQuery,
				status:    wrapped.statusCode,
				bytes:     wrapped.bytesWritten,
				elapsed:   time.Since(start),
				userAgent: r.Header.Get("User-Agent"),
				referer:   r.Header.Get("Referer"),
				requestID: id,
			}
			//nolint:gosec // user-controlled fields are passed through sanitizeLogField
			log.Println(entry.String())
		})
	}
}

// requestID returns the caller's request ID if it is a reasonable token,
// otherwise a new UUID.
func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= 64 && sanitizeLogField(id) == id && !strings.ContainsAny(id, " \t") {
		return id
	}
	return uuid.NewString()
}

// sanitizeLogField strips control characters that could forge log lines or
// inject terminal escapes. Line breaks become spaces; tabs are kept.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20:
			return -1
		}
		return r
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, prefix := range config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// escapeW3CField quotes values containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
