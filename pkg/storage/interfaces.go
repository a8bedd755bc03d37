package storage

import (
	"context"

	"github.com/nsyszr/smsrelay/pkg/model"
)

// Interface is implemented by the storage
type Interface interface {
	Messages() MessageStore
	StatusEvents() StatusEventStore
	CallLogs() CallLogStore
	Tokens() TokenStore
}

// MessageStore is responsible for managing the Message model. Upsert keys on
// a non-empty MessageID: an existing row gets its mutable fields (status,
// error, endpoint ref, elapsed time, updated at) replaced and keeps its
// created at. Messages without MessageID are always inserted.
type MessageStore interface {
	Upsert(ctx context.Context, m *model.Message) error
	UpdateStatus(ctx context.Context, messageID string, status model.Status, errText string) (int64, error)
	FindByMessageID(ctx context.Context, messageID string) (*model.Message, error)
}

// StatusEventStore is an append-only log. Append never requires the parent
// message to exist.
type StatusEventStore interface {
	Append(ctx context.Context, e *model.StatusEvent) error
	FindByMessageID(ctx context.Context, messageID string) ([]model.StatusEvent, error)
}

// CallLogStore is responsible for managing the CallLog model
type CallLogStore interface {
	Create(ctx context.Context, m *model.CallLog) error
}

// TokenStore holds the single shared secret. Current returns an empty string
// when no secret is configured.
type TokenStore interface {
	Current(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
}
