// internal/app/features/errors/errors.go

// Package errors provides the JSON error surface shared by all features.
// Client-caused failures carry a stable machine-readable code; server
// failures are logged with ids and reduced to a generic body so internals
// and secrets never reach the client.
package errors

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Stable error codes shared across features.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeBadRequest       = "BAD_REQUEST"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL"
	CodeWindowClosed     = "WINDOW_CLOSED"
	CodeAlreadySelected  = "ALREADY_SELECTED"
	CodeCapacityFull     = "CAPACITY_FULL"
	CodeInvalidSession   = "INVALID_SESSION"
	CodeRemixAlreadyUsed = "REMIX_ALREADY_USED"
	CodeStaleVersion     = "STALE_VERSION"
)

// body is the error response shape.
type body struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write emits a typed error body.
func Write(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, body{Error: code, Message: message})
}

// Unauthorized emits a 401.
func Unauthorized(w http.ResponseWriter) {
	Write(w, http.StatusUnauthorized, CodeUnauthorized, "sign in required")
}

// Forbidden emits a 403.
func Forbidden(w http.ResponseWriter) {
	Write(w, http.StatusForbidden, CodeForbidden, "not allowed")
}

// NotFound emits a 404.
func NotFound(w http.ResponseWriter, message string) {
	Write(w, http.StatusNotFound, CodeNotFound, message)
}

// BadRequest emits a 400.
func BadRequest(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, CodeBadRequest, message)
}

// RateLimited emits a 429 with Retry-After both as a header and in the body.
func RateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	JSON(w, http.StatusTooManyRequests, body{
		Error:      CodeRateLimited,
		Message:    "too many requests",
		RetryAfter: retryAfterSeconds,
	})
}

// Logger logs server-side failures and emits a generic 500 body. Tokens,
// codes, and other secrets must never be passed in as fields.
type Logger struct {
	Log *zap.Logger
}

// NewLogger constructs a Logger.
func NewLogger(log *zap.Logger) *Logger {
	return &Logger{Log: log}
}

// Internal logs the error with the operation name and emits a generic body.
func (l *Logger) Internal(w http.ResponseWriter, operation string, err error, fields ...zap.Field) {
	if l.Log != nil {
		all := append([]zap.Field{zap.Error(err)}, fields...)
		l.Log.Error(operation+" failed", all...)
	}
	Write(w, http.StatusInternalServerError, CodeInternal, "something went wrong")
}
