// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps domain errors onto status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kcal/internal/core"
	"kcal/internal/ledger"
	"kcal/internal/services"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeStaleDialog    = "stale_dialog"
	CodeEstimation     = "estimation_failed"
	CodeTooLarge       = "too_large"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal","message":"internal error"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal error")
}

// ErrorFromErr maps an error from the journal or its stores to a response.
// Unrecognized errors become a 500 with no detail.
func ErrorFromErr(err error) *JSONResponseBuilder {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		return InternalServerError()
	}
	b := ErrorResponse(status, code, err.Error())
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		b.payload = ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error(), Field: ve.Field}}
	}
	return b
}

func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, CodeTooLarge
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidDateKey),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrEmptyLabel),
		errors.Is(err, core.ErrInvalidGoals),
		errors.Is(err, core.ErrEmptyProductName):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, core.ErrEntryNotFound),
		errors.Is(err, core.ErrIndexOutOfRange),
		errors.Is(err, ledger.ErrProductNotFound),
		errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, services.ErrStaleDialog):
		return http.StatusConflict, CodeStaleDialog
	case errors.Is(err, ledger.ErrProductExists):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, core.ErrEstimation):
		return http.StatusBadGateway, CodeEstimation
	case errors.Is(err, services.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
