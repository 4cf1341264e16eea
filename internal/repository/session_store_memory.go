package repository

import (
	"context"
	"sync"
	"time"

	"authsuite/internal/domain"
)

// MemorySessionStore guarda sesiones en memoria; pensado para desarrollo y tests.
type MemorySessionStore struct {
	mu    sync.Mutex
	items map[string]domain.SessionData
	now   func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		items: make(map[string]domain.SessionData),
		now:   time.Now,
	}
}

func (s *MemorySessionStore) FindByToken(_ context.Context, token string) (domain.Session, error) {
	s.mu.Lock()
	d, ok := s.items[domain.HashSessionToken(token)]
	s.mu.Unlock()
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	return rehydrateSession(d, token)
}

func (s *MemorySessionStore) Save(_ context.Context, session domain.Session) error {
	d := session.Data()
	d.Token = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[d.TokenHash] = d
	return nil
}

func (s *MemorySessionStore) Update(_ context.Context, session domain.Session) error {
	d := session.Data()
	d.Token = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[d.TokenHash]; !ok {
		return ErrNotFound
	}
	s.items[d.TokenHash] = d
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, domain.HashSessionToken(token))
	return nil
}

func (s *MemorySessionStore) DeleteByUserID(_ context.Context, userID domain.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for hash, d := range s.items {
		if d.UserID == userID.String() {
			delete(s.items, hash)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemorySessionStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for hash, d := range s.items {
		if d.ExpiresAt.Before(now) {
			delete(s.items, hash)
			deleted++
		}
	}
	return deleted, nil
}

// Len devuelve la cantidad de sesiones guardadas.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
