package memory

import (
	"time"

	"github.com/nsyszr/smsrelay/pkg/storage"
)

// store contains all memory-based sub-stores for managing the persistent models
type store struct {
	messages     *messageStore
	statusEvents *statusEventStore
	callLogs     *callLogStore
	tokens       *tokenStore
}

// NewStore creates a new memory-based Storage interface
func NewStore() storage.Interface {
	return &store{
		messages:     newMessageStore(),
		statusEvents: newStatusEventStore(),
		callLogs:     newCallLogStore(),
		tokens:       newTokenStore(),
	}
}

// Messages returns a sub-store for managing the Message model
func (s *store) Messages() storage.MessageStore {
	return s.messages
}

// StatusEvents returns a sub-store for the status event log
func (s *store) StatusEvents() storage.StatusEventStore {
	return s.statusEvents
}

// CallLogs returns a sub-store for managing the CallLog model
func (s *store) CallLogs() storage.CallLogStore {
	return s.callLogs
}

// Tokens returns the shared secret store
func (s *store) Tokens() storage.TokenStore {
	return s.tokens
}

func now() time.Time {
	return time.Now().Round(time.Second).UTC()
}
