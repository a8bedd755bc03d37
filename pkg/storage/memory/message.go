package memory

import (
	"context"
	"sync"

	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/storage"
)

type messageStore struct {
	store       map[int64]model.Message
	byMessageID map[string]int64
	nextID      int64
	sync.RWMutex
}

func newMessageStore() *messageStore {
	return &messageStore{
		store:       make(map[int64]model.Message),
		byMessageID: make(map[string]int64),
		nextID:      1,
	}
}

func (s *messageStore) Upsert(_ context.Context, m *model.Message) error {
	s.Lock()
	defer s.Unlock()

	ts := now()

	if m.MessageID != "" {
		if id, ok := s.byMessageID[m.MessageID]; ok {
			existing := s.store[id]
			existing.Status = m.Status
			existing.Error = m.Error
			existing.EndpointRef = m.EndpointRef
			existing.ElapsedMs = m.ElapsedMs
			existing.UpdatedAt = ts
			s.store[id] = existing

			m.ID = existing.ID
			m.CreatedAt = existing.CreatedAt
			m.UpdatedAt = existing.UpdatedAt
			return nil
		}
	}

	m.ID = s.getNextID()
	m.CreatedAt = ts
	m.UpdatedAt = ts

	s.store[m.ID] = *m
	if m.MessageID != "" {
		s.byMessageID[m.MessageID] = m.ID
	}

	return nil
}

func (s *messageStore) UpdateStatus(_ context.Context, messageID string, status model.Status, errText string) (int64, error) {
	if messageID == "" {
		return 0, nil
	}

	s.Lock()
	defer s.Unlock()

	id, ok := s.byMessageID[messageID]
	if !ok {
		return 0, nil
	}

	m := s.store[id]
	m.Status = status
	m.Error = errText
	m.UpdatedAt = now()
	s.store[id] = m

	return 1, nil
}

func (s *messageStore) FindByMessageID(_ context.Context, messageID string) (*model.Message, error) {
	s.RLock()
	defer s.RUnlock()

	if id, ok := s.byMessageID[messageID]; ok {
		m := s.store[id]
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

// count is used by tests to assert that no duplicate rows exist.
func (s *messageStore) count() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.store)
}

func (s *messageStore) getNextID() int64 {
	id := s.nextID
	s.nextID++
	return id
}
