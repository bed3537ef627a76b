package validation

import (
	"errors"
	"fmt"

	"docOptimizer/worker/models"
)

var (
	ErrEmptyFile            = errors.New("file is empty")
	ErrSizeMismatch         = errors.New("declared size does not match content length")
	ErrFileTooLarge         = fmt.Errorf("file exceeds maximum size: %w", models.ErrInputTooLarge)
	ErrUnsupportedType      = fmt.Errorf("file type not allowed: %w", models.ErrUnsupportedType)
	ErrImageTooLarge        = fmt.Errorf("image exceeds maximum input size: %w", models.ErrInputTooLarge)
	ErrPDFTooLarge          = fmt.Errorf("pdf exceeds maximum input size: %w", models.ErrInputTooLarge)
	ErrContentMismatch      = errors.New("file content does not match declared type")
	ErrCategoryType         = errors.New("file type not allowed for category")
	ErrProfilePhotoTooLarge = fmt.Errorf("profile photo exceeds maximum input size: %w", models.ErrInputTooLarge)
)

// ValidationError names the rejected field. Reason is one of the sentinels
// above and is what errors.Is matches.
type ValidationError struct {
	Field   string
	Reason  error
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", e.Field, e.Reason, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

func newError(field string, reason error, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Message: fmt.Sprintf(format, args...)}
}
