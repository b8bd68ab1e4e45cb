package processor

import (
	"errors"
	"strings"
)

var (
	ErrMissingFields = errors.New("missing fields")
	ErrLoginFailed   = errors.New("login failed")
	ErrLoanDenied    = errors.New("loan request failed")
)

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingFields
}

// UnexpectedError is any failure raised by the submission channel that the
// pipeline has no specific handling for.
type UnexpectedError struct {
	Stage string
	Cause error
}

func (e *UnexpectedError) Error() string {
	return "Unexpected error: " + e.Cause.Error()
}

func (e *UnexpectedError) Unwrap() error {
	return e.Cause
}

func unexpected(stage string, err error) error {
	var ue *UnexpectedError
	if errors.As(err, &ue) {
		return err
	}
	return &UnexpectedError{Stage: stage, Cause: err}
}
