package proto

import "fmt"

type ErrorReason string

const (
	ErrReasonProtocolViolation   ErrorReason = "ERR_PROTOCOL_VIOLATION"
	ErrReasonTechnicalException  ErrorReason = "ERR_TECHNICAL_EXCEPTION"
	ErrReasonUnauthorized        ErrorReason = "ERR_UNAUTHORIZED"
	ErrReasonRegistrationTimeout ErrorReason = "ERR_REGISTRATION_TIMEOUT"
	ErrReasonValidation          ErrorReason = "ERR_VALIDATION"
	ErrReasonUnknownTopic        ErrorReason = "ERR_UNKNOWN_TOPIC"
	ErrReasonUnknownRequest      ErrorReason = "ERR_UNKNOWN_REQUEST"
)

func (e ErrorReason) String() string {
	return string(e)
}

type RegistrationError struct {
	Reason  ErrorReason
	Message string
}

func NewRegistrationError(reason ErrorReason, message string) error {
	return &RegistrationError{
		Reason:  reason,
		Message: message,
	}
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration failed: reason: %s", e.Reason)
}

func IsRegistrationError(e error) bool {
	_, ok := e.(*RegistrationError)
	return ok
}

// CallError is returned to a relay when the device answered a call with an
// ERROR message instead of a RESULT.
type CallError struct {
	Reason  string
	Details interface{}
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call failed: reason: %s", e.Reason)
}

func IsCallError(e error) bool {
	_, ok := e.(*CallError)
	return ok
}
