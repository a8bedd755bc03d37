package ingest

import "fmt"

// ValidationError rejects an inbound payload before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func IsValidationError(e error) bool {
	_, ok := e.(*ValidationError)
	return ok
}
