package venue

import (
	"errors"
	"fmt"
)

// Error codes grouped by how callers should react. Requote and OffQuotes are
// the venue telling us to try again; the rest are terminal for the request.
const (
	CodeRequote       = "requote"
	CodeOffQuotes     = "off_quotes"
	CodeRejected      = "rejected"
	CodeNotFound      = "not_found"
	CodeInvalidVolume = "invalid_volume"
	CodeUnavailable   = "unavailable"
)

// Error is a typed venue failure. Retryable marks transient conditions that
// may succeed on an identical retry.
type Error struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("venue: %s: %s", e.Code, e.Message)
}

// NewError builds a terminal venue error.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewTransient builds a retryable venue error.
func NewTransient(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Retryable: true}
}

// IsRetryable reports whether err is a venue error marked transient.
func IsRetryable(err error) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.Retryable
}

// IsNotFound reports whether err means the venue no longer knows the ticket.
func IsNotFound(err error) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.Code == CodeNotFound
}
