package resource

import (
	"time"

	"github.com/nsyszr/smsrelay/pkg/model"
)

type CallLogResource struct {
	ID              int64      `json:"id"`
	EndpointRef     string     `json:"endpointRef,omitempty"`
	From            string     `json:"from"`
	To              string     `json:"to,omitempty"`
	Direction       string     `json:"direction,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}

func NewCallLog(m *model.CallLog) *CallLogResource {
	return &CallLogResource{
		ID:              m.ID,
		EndpointRef:     m.EndpointRef,
		From:            m.FromAddress,
		To:              m.ToAddress,
		Direction:       string(m.Direction),
		DurationSeconds: m.DurationSeconds,
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		CreatedAt:       timestamp(m.CreatedAt),
	}
}
