package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"obligations/internal/core"
	"obligations/internal/log"
	"obligations/internal/middleware/trace"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body or a 204 writes no payload.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response body", "error", err)
	}
}

// StatusCode returns the configured status code.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    []core.FieldError `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// ErrorResponse creates an error response with the given status.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequestError creates a 400 Bad Request response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// NotFoundError creates a 404 Not Found response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

// UnprocessableEntityError creates a 422 response listing the rejected fields.
func UnprocessableEntityError(message string, fields []core.FieldError) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(ErrorBody{Error: ErrorDetail{Code: "validation_failed", Message: message, Fields: fields}})
}

// requestError is a malformed request that never reached the engine.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// FromError maps an engine error to its response:
// validation 422, duplicate and inconsistent 409, not found 404,
// dependency 503 and anything else 500.
func FromError(err error) *JSONResponseBuilder {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return BadRequestError(reqErr.msg)
	}

	switch core.KindOf(err) {
	case core.ErrValidation:
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return UnprocessableEntityError(err.Error(), verr.Fields)
		}
		return UnprocessableEntityError(err.Error(), nil)
	case core.ErrDuplicateOccurrence:
		return ErrorResponse(http.StatusConflict, "duplicate_occurrence", err.Error())
	case core.ErrNotFound:
		return NotFoundError(err.Error())
	case core.ErrInconsistentState:
		return ErrorResponse(http.StatusConflict, "inconsistent_state", err.Error())
	case core.ErrDependencyFailure:
		return ErrorResponse(http.StatusServiceUnavailable, "dependency_failure", "a dependency is unavailable, retry later").
			Header("Retry-After", "5")
	default:
		return ErrorResponse(http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// writeError logs err with the request logger and writes its response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := FromError(err)
	if body, ok := resp.body.(ErrorBody); ok {
		body.Error.RequestID = trace.GetRequestID(r.Context())
		resp.Body(body)
	}

	ctx := r.Context()
	fields := log.NewFields().WithError(err).ToSlice()
	if resp.StatusCode() >= http.StatusInternalServerError {
		log.FromContext(ctx).ErrorContext(ctx, "Request failed", fields...)
	} else {
		log.FromContext(ctx).InfoContext(ctx, "Request rejected", fields...)
	}
	resp.Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
