// Package response writes the JSON envelope served by the dashboard API:
// {"data": ..., "error": null} on success and {"data": null, "error": {...}} on failure.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/clinicsync/pkg/errors"
)

// Response is the body of every API reply.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error describes a failed request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error codes, keyed to the HTTP status they are sent with.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeMethod       = "METHOD_NOT_ALLOWED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
)

var statusOf = map[string]int{
	CodeBadRequest:   http.StatusBadRequest,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeNotFound:     http.StatusNotFound,
	CodeMethod:       http.StatusMethodNotAllowed,
	CodeRateLimited:  http.StatusTooManyRequests,
	CodeInternal:     http.StatusInternalServerError,
	CodeUnavailable:  http.StatusServiceUnavailable,
}

// Success wraps data in a response.
func Success(data any) Response { return Response{Data: data} }

// Fail builds an error response.
func Fail(code, message, details string) Response {
	return Response{Error: &Error{Code: code, Message: message, Details: details}}
}

// JSON writes resp with the given status.
func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Problem writes an error response whose status follows from code.
func Problem(w http.ResponseWriter, code, message, details string) {
	status, ok := statusOf[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	JSON(w, status, Fail(code, message, details))
}

// OK writes data with a 200 status.
func OK(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, Success(data)) }

// Encode renders a success body for caching.
func Encode(data any) ([]byte, error) { return json.Marshal(Success(data)) }

// Raw writes a body produced by Encode.
func Raw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func BadRequest(w http.ResponseWriter, message, details string) {
	Problem(w, CodeBadRequest, message, details)
}

func Unauthorized(w http.ResponseWriter, message, details string) {
	Problem(w, CodeUnauthorized, message, details)
}

func NotFound(w http.ResponseWriter, message, details string) {
	Problem(w, CodeNotFound, message, details)
}

func MethodNotAllowed(w http.ResponseWriter, method string) {
	Problem(w, CodeMethod, "Method not allowed", method+" is not supported here; the dashboard API is read-only")
}

func RateLimited(w http.ResponseWriter, details string) {
	Problem(w, CodeRateLimited, "Rate limit exceeded", details)
}

func ServiceUnavailable(w http.ResponseWriter, details string) {
	Problem(w, CodeUnavailable, "Service unavailable", details)
}

// InternalError never exposes err to the caller; log it before calling.
func InternalError(w http.ResponseWriter, _ error) {
	Problem(w, CodeInternal, "Internal server error", "")
}

// ErrorFromType maps client and lookup errors onto API errors.
func ErrorFromType(w http.ResponseWriter, err error) {
	var (
		notFound   *errors.NotFoundError
		validation *errors.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		NotFound(w, notFound.Error(), notFound.Resource)
	case errors.As(err, &validation):
		BadRequest(w, validation.Error(), validation.Field)
	case errors.IsNotConnected(err):
		ServiceUnavailable(w, "event server connection is not open")
	case errors.Is(err, errors.ErrDisposed):
		ServiceUnavailable(w, "sync client has been disposed")
	default:
		InternalError(w, err)
	}
}
