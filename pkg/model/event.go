package model

import (
	"encoding/json"
	"time"
)

// StatusEvent is an append-only audit entry of one observed status
// transition. MessageID is empty when the event could not be correlated.
type StatusEvent struct {
	ID        int64
	MessageID string
	Status    Status
	Error     string
	Raw       json.RawMessage

	CreatedAt time.Time
}
