// Package businessflow contains the core business logic and use cases for mailing workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Mailing-related errors
	ErrMailingNotFound      = errors.New("mailing not found")
	ErrMailingTitleRequired = errors.New("mailing title is required")
	ErrMailingTextRequired  = errors.New("mailing text is required")

	// Dispatch-related errors
	ErrDispatchAlreadyRunning = errors.New("dispatch already running for this mailing")

	// Import-related errors
	ErrFileRequired      = errors.New("file is required")
	ErrInvalidFileFormat = errors.New("invalid file format")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsMailingNotFound(err error) bool {
	return errors.Is(err, ErrMailingNotFound)
}

func IsMailingTitleRequired(err error) bool {
	return errors.Is(err, ErrMailingTitleRequired)
}

func IsMailingTextRequired(err error) bool {
	return errors.Is(err, ErrMailingTextRequired)
}

func IsDispatchAlreadyRunning(err error) bool {
	return errors.Is(err, ErrDispatchAlreadyRunning)
}

func IsFileRequired(err error) bool {
	return errors.Is(err, ErrFileRequired)
}

func IsInvalidFileFormat(err error) bool {
	return errors.Is(err, ErrInvalidFileFormat)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
