package model

import (
	"encoding/json"
	"time"
)

// CallLog is a call record reported by a device. Everything but the origin
// address is best effort.
type CallLog struct {
	ID              int64
	EndpointRef     string
	FromAddress     string
	ToAddress       string
	Direction       Direction
	DurationSeconds *int64
	StartedAt       *time.Time
	EndedAt         *time.Time
	Raw             json.RawMessage

	CreatedAt time.Time
}
