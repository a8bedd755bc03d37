package model

import (
	"encoding/json"
	"time"
)

// Direction tells whether a message was sent by a device or to a device.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Kind is the sort of command a message carries.
type Kind string

const (
	KindSMS  Kind = "sms"
	KindCall Kind = "call"
)

// Status is the lifecycle state of a message. Outbound messages move from
// queued to exactly one terminal state; inbound messages and delivery
// receipts may carry arbitrary device supplied values.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusDeviceAck  Status = "device_ack"
	StatusDeviceNack Status = "device_nack"
	StatusNoDevice   Status = "no_device"
	StatusReceived   Status = "received"
)

// IsTerminal reports whether the status ends an outbound relay attempt.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDeviceAck, StatusDeviceNack, StatusNoDevice:
		return true
	}
	return false
}

// Message is a model of the persistency layer. An empty MessageID means the
// message has no idempotency key and every write of it is a new row.
type Message struct {
	ID          int64
	MessageID   string
	Direction   Direction
	Kind        Kind
	EndpointRef string
	FromAddress string
	ToAddress   string
	Line        string
	Body        string
	Status      Status
	Error       string
	ElapsedMs   *int64
	Payload     json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}
