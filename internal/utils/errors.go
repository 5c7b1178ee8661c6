package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeNotFound        Code = "NOT_FOUND"
	CodePayloadTooLarge Code = "PAYLOAD_TOO_LARGE"
	CodeRateLimited     Code = "RATE_LIMITED"

	// upstream model server
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeModelNotFound       Code = "MODEL_NOT_FOUND"
	CodeUpstreamMalformed   Code = "UPSTREAM_MALFORMED"
	CodeUpstreamError       Code = "UPSTREAM_ERROR"

	// storage
	CodePersistenceInvalid     Code = "PERSISTENCE_INVALID"
	CodePersistenceUnavailable Code = "PERSISTENCE_UNAVAILABLE"

	CodeInternal Code = "INTERNAL"
)

// AppError is the unified error contract across layers.
type AppError struct {
	Code    Code
	Op      string // operation name, ex: "PipelineService.Run"
	Message string // safe message
	Err     error  // wrapped error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "error"
	}
}

func (e *AppError) Unwrap() error { return e.Err }

func E(code Code, op, msg string, err error) error {
	return &AppError{Code: code, Op: op, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost AppError in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsUpstream reports whether err came from the model server.
func IsUpstream(err error) bool {
	switch CodeOf(err) {
	case CodeUpstreamUnavailable, CodeUpstreamTimeout, CodeModelNotFound, CodeUpstreamMalformed, CodeUpstreamError:
		return true
	}
	return false
}

// IsPersistence reports whether err came from the conversation store.
func IsPersistence(err error) bool {
	switch CodeOf(err) {
	case CodePersistenceInvalid, CodePersistenceUnavailable:
		return true
	}
	return false
}

func HTTPStatus(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Code {
		case CodeInvalidArgument, CodePersistenceInvalid:
			return http.StatusBadRequest
		case CodeUnauthorized:
			return http.StatusUnauthorized
		case CodeNotFound:
			return http.StatusNotFound
		case CodePayloadTooLarge:
			return http.StatusRequestEntityTooLarge
		case CodeRateLimited:
			return http.StatusTooManyRequests
		case CodeUpstreamUnavailable, CodeUpstreamTimeout, CodeModelNotFound,
			CodeUpstreamMalformed, CodeUpstreamError, CodePersistenceUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
