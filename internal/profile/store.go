// Package profile is the display-name lookup, keyed by the same wallet
// identity space as sessions.
package profile

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/ryanongwx/chessbet/internal/wallet"
)

var ErrNotFound = errors.New("profile not found")

const hashKey = "match:profiles"

// Store keeps identity → display name. Redis-backed when a client is
// provided, memory-only otherwise.
type Store struct {
	rdb *redis.Client

	mu  sync.RWMutex
	mem map[wallet.Identity]string
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, mem: make(map[wallet.Identity]string)}
}

func (s *Store) Set(ctx context.Context, id wallet.Identity, name string) error {
	if s.rdb != nil {
		return s.rdb.HSet(ctx, hashKey, string(id), name).Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[id] = name
	return nil
}

func (s *Store) Get(ctx context.Context, id wallet.Identity) (string, error) {
	if s.rdb != nil {
		name, err := s.rdb.HGet(ctx, hashKey, string(id)).Result()
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return name, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.mem[id]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}
