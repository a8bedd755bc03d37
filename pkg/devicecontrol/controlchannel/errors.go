package controlchannel

import "github.com/pkg/errors"

var (
	// ErrLinkClosed fails calls that were pending when the link ended.
	ErrLinkClosed = errors.New("controlchannel: link closed")

	// ErrOutboxFull is returned when a frame could not be queued.
	ErrOutboxFull = errors.New("controlchannel: outbox full or closed")
)
