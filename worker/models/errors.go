package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedType        = errors.New("unsupported type")
	ErrInputTooLarge          = errors.New("input too large")
	ErrPdfCompressionFailed   = errors.New("pdf compression failed")
	ErrImageCompressionFailed = errors.New("image compression failed")
	ErrTimeout                = errors.New("processing timed out")
)

// ProcessingError reports a failure inside the compression pipeline. Kind is
// one of the sentinels above; errors.Is matches both Kind and the cause.
type ProcessingError struct {
	Kind error
	Op   string
	Err  error
}

func NewProcessingError(kind error, op string, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Op: op, Err: err}
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
