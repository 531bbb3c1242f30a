package transport

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Send when the channel is not OPEN. The
// caller owns queueing and retry; the transport never buffers sends while
// disconnected.
var ErrNotConnected = errors.New("transport: channel not connected")

// Error is the tagged failure result of a REST call.
type Error struct {
	Op         string `json:"op"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Message, e.Err.Error())
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newRequestError(op string, err error) *Error {
	return &Error{
		Op:      op,
		Message: "request failed",
		Err:     err,
	}
}

func newStatusError(op string, code int, message string) *Error {
	return &Error{
		Op:         op,
		StatusCode: code,
		Message:    message,
	}
}

func newDecodeError(op string, err error) *Error {
	return &Error{
		Op:      op,
		Message: "malformed response body",
		Err:     err,
	}
}
