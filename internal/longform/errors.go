package longform

import "fmt"

// StatusError carries the HTTP status a pipeline failure should surface as.
type StatusError struct {
	Code    int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StatusError) Unwrap() error { return e.Err }

func statusErrorf(code int, format string, args ...any) *StatusError {
	return &StatusError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapStatus(code int, message string, err error) *StatusError {
	return &StatusError{Code: code, Message: message, Err: err}
}
