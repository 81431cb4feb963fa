package service

import "errors"

// ErrorKind classifies a failed operation
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindInvalidState ErrorKind = "invalid_state"
	KindValidation   ErrorKind = "validation"
	KindPersistence  ErrorKind = "persistence"
)

// TransitionError carries a user-facing message and its kind. Err holds the
// underlying cause, if any.
type TransitionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *TransitionError) Error() string {
	return e.Message
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindPersistence for foreign errors.
func KindOf(err error) ErrorKind {
	var ee *TransitionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindPersistence
}
