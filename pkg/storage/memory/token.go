package memory

import (
	"context"
	"sync"
)

type tokenStore struct {
	token string
	sync.RWMutex
}

func newTokenStore() *tokenStore {
	return &tokenStore{}
}

func (s *tokenStore) Current(_ context.Context) (string, error) {
	s.RLock()
	defer s.RUnlock()
	return s.token, nil
}

func (s *tokenStore) Set(_ context.Context, token string) error {
	s.Lock()
	s.token = token
	s.Unlock()
	return nil
}
