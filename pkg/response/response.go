package response

import (
	"errors"
)

// Error is a domain error that knows its HTTP status and a stable machine code.
type Error struct {
	Code int
	Kind string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind && e.Err.Error() == t.Err.Error()
}

func NewKindError(code int, kind string, err string) error {
	return &Error{Code: code, Kind: kind, Err: errors.New(err)}
}

// KindOf returns the machine code of err, or "" when err is not a domain error.
func KindOf(err error) string {
	var respErr *Error
	if errors.As(err, &respErr) {
		return respErr.Kind
	}
	return ""
}
