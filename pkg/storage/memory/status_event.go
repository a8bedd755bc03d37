package memory

import (
	"context"
	"sync"

	"github.com/nsyszr/smsrelay/pkg/model"
)

type statusEventStore struct {
	events []model.StatusEvent
	nextID int64
	sync.RWMutex
}

func newStatusEventStore() *statusEventStore {
	return &statusEventStore{
		events: make([]model.StatusEvent, 0),
		nextID: 1,
	}
}

func (s *statusEventStore) Append(_ context.Context, e *model.StatusEvent) error {
	s.Lock()
	defer s.Unlock()

	e.ID = s.nextID
	s.nextID++
	e.CreatedAt = now()

	s.events = append(s.events, *e)

	return nil
}

func (s *statusEventStore) FindByMessageID(_ context.Context, messageID string) ([]model.StatusEvent, error) {
	s.RLock()
	defer s.RUnlock()

	out := make([]model.StatusEvent, 0)
	for _, e := range s.events {
		if e.MessageID == messageID {
			out = append(out, e)
		}
	}

	return out, nil
}
