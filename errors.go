package gcstore

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Error codes used by this package.
const (
	// CodeInvalidArgument marks errors raised by argument validation before
	// any network request is issued.
	CodeInvalidArgument = "InvalidArgument"
	// CodeOperationFailed marks a non-2xx response on the update-object-ACL
	// path.
	CodeOperationFailed = "OperationFailed"
)

// Error represents a gcstore API error with a machine-readable code,
// human-readable message, and the HTTP status code where one applies.
type Error struct {
	// Code is the error code (e.g., "InvalidArgument", "OperationFailed").
	Code string
	// Message is a human-readable description of the error.
	Message string
	// HTTPStatus is the HTTP status code associated with the error, or zero
	// for errors raised before a request was issued.
	HTTPStatus int
}

// Error implements the error interface for Error.
func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("gcstore: %s (%d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("gcstore: %s: %s", e.Code, e.Message)
}

// invalidArg constructs an InvalidArgument error. These are returned
// synchronously, before any request is built or sent.
func invalidArg(format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

// operationFailed constructs an OperationFailed error for the given HTTP
// status.
func operationFailed(message string, status int) *Error {
	return &Error{
		Code:       CodeOperationFailed,
		Message:    message,
		HTTPStatus: status,
	}
}

// IsInvalidArgument reports whether err is an argument-validation error from
// this package.
func IsInvalidArgument(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeInvalidArgument
}

// AsAPIError unwraps a server-side API error from err, if present. The
// client validates the HTTP status of every response; failures surface as
// *googleapi.Error carrying the status code and the server's error body.
func AsAPIError(err error) (*googleapi.Error, bool) {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
