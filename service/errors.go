package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("contract not found")
	ErrAlreadyProcessing  = errors.New("contract is already being processed")
	ErrAlreadyTerminal    = errors.New("contract has already finished processing")
	ErrResultNotReady     = errors.New("extraction result is not available yet")
	ErrStatusConflict     = errors.New("contract status changed concurrently")
	ErrPresignUnsupported = errors.New("storage does not support presigned urls")
)

// ErrorKind groups processing failures into the categories shown to users.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindExtraction ErrorKind = "extraction"
	KindInternal   ErrorKind = "internal"
)

// ProcessingError is a categorized failure. Message is safe to show to users;
// Cause carries the raw error for logs only.
type ProcessingError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func NewValidationError(message string) *ProcessingError {
	return &ProcessingError{Kind: KindValidation, Message: message}
}

func NewExtractionFailure(message string, cause error) *ProcessingError {
	return &ProcessingError{Kind: KindExtraction, Message: message, Cause: cause}
}

func NewInternalError(cause error) *ProcessingError {
	return &ProcessingError{Kind: KindInternal, Message: "internal processing error", Cause: cause}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe) && pe.Kind == KindValidation
}

// SanitizeMessage returns the user-facing text persisted on a failed contract.
// Raw causes can contain file paths or library internals, so only the
// category message of a ProcessingError is ever returned.
func SanitizeMessage(err error) string {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "processing timed out"
	}
	return "internal processing error"
}
