package relay

import (
	"fmt"
	"strings"
)

// AckKind names the rule that decided an acknowledgement.
type AckKind int

const (
	AckNoPayload AckKind = iota
	AckLoopbackFlag
	AckExplicitFlag
	AckStatusString
	AckErrorField
	AckOpaque
)

func (k AckKind) String() string {
	switch k {
	case AckNoPayload:
		return "no_payload"
	case AckLoopbackFlag:
		return "loopback_flag"
	case AckExplicitFlag:
		return "explicit_flag"
	case AckStatusString:
		return "status_string"
	case AckErrorField:
		return "error_field"
	case AckOpaque:
		return "opaque"
	}
	return "unknown"
}

// Ack is the classified acknowledgement of one candidate.
type Ack struct {
	Kind    AckKind
	OK      bool
	Reason  Reason
	Message string
}

var (
	successStatuses = map[string]bool{
		"ok": true, "success": true, "sent": true, "queued": true,
		"accepted": true, "delivered": true, "dialing": true,
	}
	failureStatuses = map[string]bool{
		"error": true, "failed": true, "failure": true, "rejected": true,
		"nack": true, "undelivered": true,
	}
)

// ackRule inspects a structured payload. It returns false when the rule
// does not apply.
type ackRule func(payload map[string]interface{}) (Ack, bool)

// Rules run in this order; the first one that applies decides. Loopback
// runs before the explicit flag so a test echo can never pass as a
// delivery. An error field outranks a status string.
var ackRules = []ackRule{
	loopbackRule,
	explicitFlagRule,
	errorFieldRule,
	statusStringRule,
}

// ClassifyAck decides whether a device acknowledgement means success.
// Missing payloads and payloads that are not objects are successes, as are
// objects without any recognised indicator.
func ClassifyAck(payload interface{}) Ack {
	if payload == nil {
		return Ack{Kind: AckNoPayload, OK: true}
	}

	obj, ok := payload.(map[string]interface{})
	if !ok {
		return Ack{Kind: AckOpaque, OK: true}
	}

	for _, rule := range ackRules {
		if ack, ok := rule(obj); ok {
			return ack
		}
	}

	return Ack{Kind: AckOpaque, OK: true}
}

func loopbackRule(obj map[string]interface{}) (Ack, bool) {
	flagged := false
	if v, ok := truthy(obj["loopback"]); ok && v {
		flagged = true
	}
	for _, key := range []string{"source", "kind"} {
		if s, ok := obj[key].(string); ok && strings.EqualFold(s, "loopback") {
			flagged = true
		}
	}
	if !flagged {
		return Ack{}, false
	}
	return Ack{Kind: AckLoopbackFlag, Reason: ReasonLoopbackClient, Message: "acknowledged by a loopback client"}, true
}

func explicitFlagRule(obj map[string]interface{}) (Ack, bool) {
	for _, key := range []string{"ok", "success"} {
		v, ok := truthy(obj[key])
		if !ok {
			continue
		}
		if v {
			return Ack{Kind: AckExplicitFlag, OK: true}, true
		}
		return Ack{Kind: AckExplicitFlag, Reason: ReasonDeviceNack, Message: failureMessage(obj, "")}, true
	}
	return Ack{}, false
}

func statusStringRule(obj map[string]interface{}) (Ack, bool) {
	s, ok := obj["status"].(string)
	if !ok {
		return Ack{}, false
	}
	status := strings.ToLower(strings.TrimSpace(s))
	switch {
	case successStatuses[status]:
		return Ack{Kind: AckStatusString, OK: true}, true
	case failureStatuses[status]:
		return Ack{Kind: AckStatusString, Reason: ReasonDeviceNack, Message: failureMessage(obj, s)}, true
	}
	return Ack{}, false
}

// errorFieldRule applies to a non-empty error field. A message field only
// counts as an error on payloads without a status, where it is the sole
// indicator.
func errorFieldRule(obj map[string]interface{}) (Ack, bool) {
	var msg string
	if _, hasStatus := obj["status"]; hasStatus {
		msg = fieldMessage(obj, "error")
	} else {
		msg = failureMessage(obj, "")
	}
	if msg == "" {
		return Ack{}, false
	}
	return Ack{Kind: AckErrorField, Reason: ReasonDeviceNack, Message: msg}, true
}

// failureMessage returns the error or message field of obj, or fallback.
func failureMessage(obj map[string]interface{}, fallback string) string {
	for _, key := range []string{"error", "message"} {
		if msg := fieldMessage(obj, key); msg != "" {
			return msg
		}
	}
	return fallback
}

// fieldMessage renders obj[key] as text. Empty strings, false and missing
// keys yield "".
func fieldMessage(obj map[string]interface{}, key string) string {
	switch v := obj[key].(type) {
	case nil:
	case string:
		return v
	case bool:
		if v {
			return key
		}
	default:
		return fmt.Sprint(v)
	}
	return ""
}

// truthy interprets flag like values. The second result is false when v is
// not a recognisable flag.
func truthy(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "ok", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}
