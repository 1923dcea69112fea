package session

import (
	"context"
	"sort"
	"sync"

	"github.com/ryanongwx/chessbet/internal/wallet"
)

// MemStore is the in-memory Store used when no Redis is configured, and in
// tests. Semantics match RedisStore, including version enforcement.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*Session)}
}

func (m *MemStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrDuplicateID
	}
	c := s.Clone()
	c.Version = 1
	m.sessions[s.ID] = c
	s.Version = 1
	return nil
}

func (m *MemStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemStore) Put(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != s.Version {
		return ErrVersionConflict
	}
	c := s.Clone()
	c.Version++
	m.sessions[s.ID] = c
	s.Version = c.Version
	return nil
}

func (m *MemStore) ListByStatus(ctx context.Context, st Status) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Status == st {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) PlayingByParticipant(ctx context.Context, id wallet.Identity) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.Status == StatusPlaying && s.Participant(id) {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) WaitingByCreator(ctx context.Context, id wallet.Identity) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.Status == StatusWaiting && s.Creator == string(id) {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}
