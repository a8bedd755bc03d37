package resource

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/nsyszr/smsrelay/pkg/model"
)

type MessageResource struct {
	ID          int64                  `json:"id"`
	MessageID   string                 `json:"messageId,omitempty"`
	Direction   string                 `json:"direction"`
	Kind        string                 `json:"kind"`
	EndpointRef string                 `json:"endpointRef,omitempty"`
	From        string                 `json:"from,omitempty"`
	To          string                 `json:"to,omitempty"`
	Line        string                 `json:"line,omitempty"`
	Body        string                 `json:"message,omitempty"`
	Status      string                 `json:"status"`
	Error       string                 `json:"error,omitempty"`
	ElapsedMs   *int64                 `json:"elapsedMs,omitempty"`
	Payload     json.RawMessage        `json:"payload,omitempty"`
	CreatedAt   *time.Time             `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time             `json:"updatedAt,omitempty"`
	Events      []*StatusEventResource `json:"events,omitempty"`
}

type StatusEventResource struct {
	ID        int64           `json:"id"`
	MessageID string          `json:"messageId,omitempty"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func NewMessage(m *model.Message, events []model.StatusEvent) (out *MessageResource) {
	out = &MessageResource{
		ID:          m.ID,
		MessageID:   m.MessageID,
		Direction:   string(m.Direction),
		Kind:        string(m.Kind),
		EndpointRef: m.EndpointRef,
		From:        m.FromAddress,
		To:          m.ToAddress,
		Line:        m.Line,
		Body:        m.Body,
		Status:      string(m.Status),
		Error:       m.Error,
		ElapsedMs:   m.ElapsedMs,
		Payload:     m.Payload,
		CreatedAt:   timestamp(m.CreatedAt),
		UpdatedAt:   timestamp(m.UpdatedAt),
	}

	for i := range events {
		out.Events = append(out.Events, NewStatusEvent(&events[i]))
	}
	// Oldest first
	sort.SliceStable(out.Events, func(i, j int) bool {
		return out.Events[i].ID < out.Events[j].ID
	})

	return // out
}

func NewStatusEvent(m *model.StatusEvent) *StatusEventResource {
	return &StatusEventResource{
		ID:        m.ID,
		MessageID: m.MessageID,
		Status:    string(m.Status),
		Error:     m.Error,
		Raw:       m.Raw,
		CreatedAt: m.CreatedAt.Round(time.Second),
	}
}

func timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	out := t.Round(time.Second)
	return &out
}
