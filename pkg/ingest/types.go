package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// InboundMessage is an SMS received by a device.
type InboundMessage struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"message"`
	Line      string `json:"line"`
	Device    string `json:"device"`
}

// StatusCallback is a delivery receipt for an outbound message.
type StatusCallback struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// CallLogEntry is a call record. Numeric and time fields accept several
// encodings since devices differ in what they send.
type CallLogEntry struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Direction string      `json:"direction"`
	Duration  interface{} `json:"duration"`
	StartedAt interface{} `json:"startedAt"`
	EndedAt   interface{} `json:"endedAt"`
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return newValidationError("", "empty payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return newValidationError("", "payload is not a JSON object")
	}
	return nil
}

// parseDuration returns whole seconds or nil.
func parseDuration(v interface{}) *int64 {
	switch t := v.(type) {
	case float64:
		d := int64(t)
		return &d
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			d := int64(n)
			return &d
		}
	}
	return nil
}

// parseTime accepts RFC 3339 strings and unix epochs in seconds or
// milliseconds. Anything else is nil.
func parseTime(v interface{}) *time.Time {
	switch t := v.(type) {
	case float64:
		return epoch(int64(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epoch(n)
		}
	}
	return nil
}

func epoch(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var ts time.Time
	if n > 1e11 {
		ts = time.UnixMilli(n).UTC()
	} else {
		ts = time.Unix(n, 0).UTC()
	}
	return &ts
}

func parseDirection(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "incoming", "inbound", "missed":
		return "in"
	case "out", "outgoing", "outbound":
		return "out"
	}
	return ""
}
