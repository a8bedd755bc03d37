// Package message holds the JSON documents exchanged over NATS: operator
// requests and replies and published events.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Subjects of the NATS boundary.
const (
	SubjectSend          = "smsrelay.v1.send"
	SubjectCall          = "smsrelay.v1.call"
	SubjectDeviceStatus  = "smsrelay.v1.events.devicestatus"
	SubjectMessageStatus = "smsrelay.v1.events.messagestatus"

	// SubjectEvents matches every event subject.
	SubjectEvents = "smsrelay.v1.events.*"

	// QueueRelay load balances operator requests across relay instances.
	QueueRelay = "smsrelay.v1.queue.relay"
)

//
// SourceType definition
//

type SourceType int

const (
	SourceTypeSystem SourceType = iota
	SourceTypeDevice
)

func (t SourceType) String() string {
	return sourceTypeToString[t]
}

var sourceTypeToString = map[SourceType]string{
	SourceTypeSystem: "SYSTEM",
	SourceTypeDevice: "DEVICE",
}

var stringToSourceType = map[string]SourceType{
	"SYSTEM": SourceTypeSystem,
	"DEVICE": SourceTypeDevice,
}

func (t SourceType) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(sourceTypeToString[t])
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

func (t *SourceType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	st, err := SourceTypeFromString(s)
	if err != nil {
		return err
	}
	*t = st
	return nil
}

func SourceTypeFromString(s string) (SourceType, error) {
	if t, ok := stringToSourceType[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("invalid source type '%s'", s)
}

//
// ReplyStatus definition
//

type ReplyStatus int

const (
	ReplyStatusSuccess ReplyStatus = iota
	ReplyStatusError
)

// SendRequest asks the relay to deliver an SMS.
type SendRequest struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	Line      string `json:"line,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// CallRequest asks the relay to place a voice call.
type CallRequest struct {
	To        string `json:"to"`
	MessageID string `json:"messageId,omitempty"`
}

// RelayReply answers a send or call request. A relay outcome other than
// success is still ReplyStatusSuccess; ReplyStatusError means the request
// itself could not be processed.
type RelayReply struct {
	Status       ReplyStatus     `json:"status"`
	OK           bool            `json:"ok"`
	Error        string          `json:"error,omitempty"`
	Detail       string          `json:"detail,omitempty"`
	MessageID    string          `json:"messageId,omitempty"`
	ElapsedMs    int64           `json:"elapsedMs"`
	AckPayload   json.RawMessage `json:"ackPayload,omitempty"`
	ErrorReason  string          `json:"error_reason,omitempty"`
	ErrorDetails interface{}     `json:"error_details,omitempty"`
}

// EventMessage is published on the event subjects.
type EventMessage struct {
	SourceType SourceType  `json:"source_type"`
	SourceID   string      `json:"source_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Details    interface{} `json:"details"`
}

type DeviceStatusDetails struct {
	Status         string    `json:"status"`
	Kind           string    `json:"kind"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type MessageStatusDetails struct {
	MessageID   string `json:"message_id"`
	Direction   string `json:"direction,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	EndpointRef string `json:"endpoint_ref,omitempty"`
}
