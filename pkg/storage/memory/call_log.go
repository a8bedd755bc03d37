package memory

import (
	"context"
	"sync"

	"github.com/nsyszr/smsrelay/pkg/model"
)

type callLogStore struct {
	store  map[int64]model.CallLog
	nextID int64
	sync.Mutex
}

func newCallLogStore() *callLogStore {
	return &callLogStore{
		store:  make(map[int64]model.CallLog),
		nextID: 1,
	}
}

func (s *callLogStore) Create(_ context.Context, m *model.CallLog) error {
	s.Lock()
	defer s.Unlock()

	m.ID = s.nextID
	s.nextID++
	m.CreatedAt = now()

	s.store[m.ID] = *m

	return nil
}
