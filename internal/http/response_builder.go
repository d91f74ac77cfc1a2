// Package http serves the dosh web UI and the action API.
//
// This file implements a small builder for the JSON and HTML responses the
// API sends, so every handler sets status, content type and extra headers
// the same way.

package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dosh/internal/present"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON encodes v as the response body. A nil v encodes as null.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = contentTypeJSON
	b.body, b.err = json.Marshal(v)
	return b
}

// HTML sets the response body as an HTML fragment.
func (b *ResponseBuilder) HTML(html string) *ResponseBuilder {
	b.headers["Content-Type"] = contentTypeHTML
	b.body = []byte(html)
	return b
}

// Err reports a failure to encode the body.
func (b *ResponseBuilder) Err() error {
	return b.err
}

// Write sends the built response to the http.ResponseWriter. An encoding
// failure turns into a 500 with a JSON error payload.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		b.statusCode = http.StatusInternalServerError
		b.headers["Content-Type"] = contentTypeJSON
		b.body = []byte(`{"ERROR":"Internal error"}`)
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a JSON error response: {"ERROR": message}.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(present.ErrorPayload{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").
		Header("Allow", allowedMethods)
}

// TooManyRequestsError creates a 429 response asking the client to retry
// after retryAfter seconds.
func TooManyRequestsError(retryAfter int) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded").
		Header("Retry-After", strconv.Itoa(retryAfter))
}
