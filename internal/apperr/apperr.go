// Package apperr is the error model shared by services and HTTP handlers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Code classifies an error independently of the transport.
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeInternal        Code = "INTERNAL"
)

// APIError is an error with a code that maps onto an HTTP status.
type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// StatusClientClosedRequest is reported when the client went away before the response.
const StatusClientClosedRequest = 499

// Invalid rejects malformed input.
func Invalid(msg string) *APIError { return &APIError{Code: CodeInvalidArgument, Message: msg} }

// Unauthenticated reports a missing or bad credential.
func Unauthenticated(msg string) *APIError { return &APIError{Code: CodeUnauthenticated, Message: msg} }

// Forbidden reports an authenticated caller lacking permission.
func Forbidden(msg string) *APIError { return &APIError{Code: CodeForbidden, Message: msg} }

// NotFound reports a missing resource.
func NotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }

// Conflict reports a state clash such as a duplicate or a superseded request.
func Conflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }

// Unavailable reports a failing upstream or an unconfigured integration.
func Unavailable(msg string) *APIError { return &APIError{Code: CodeUnavailable, Message: msg} }

// Internal wraps a failure the client cannot act on.
func Internal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var api *APIError
	return errors.As(err, &api) && api.Code == code
}

// HTTPStatus maps an error onto a response status. Errors without a code are 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeUnauthenticated:
			return http.StatusUnauthorized
		case CodeForbidden:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		case CodeUnavailable:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// Respond writes err as {"error": msg}. Internal errors are logged and hidden from the client.
// A cancelled request gets a bare status and no log line.
func Respond(c *gin.Context, err error) {
	status := HTTPStatus(err)
	if status == StatusClientClosedRequest {
		c.AbortWithStatus(status)
		return
	}
	if status == http.StatusGatewayTimeout {
		c.JSON(status, gin.H{"error": "request timed out"})
		return
	}
	var api *APIError
	if status == http.StatusInternalServerError || !errors.As(err, &api) {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": api.Message, "code": api.Code})
}
