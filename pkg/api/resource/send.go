package resource

import (
	"fmt"
	"strings"
)

// SendResource is the body of an outbound SMS request.
type SendResource struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	Line      string `json:"line,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// CallResource is the body of an outbound call request.
type CallResource struct {
	To        string `json:"to"`
	MessageID string `json:"messageId,omitempty"`
}

func ValidateSend(r *SendResource) error {
	if strings.TrimSpace(r.To) == "" {
		return fmt.Errorf("to is required")
	}
	if r.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

func ValidateCall(r *CallResource) error {
	if strings.TrimSpace(r.To) == "" {
		return fmt.Errorf("to is required")
	}
	return nil
}
