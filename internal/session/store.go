package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ryanongwx/chessbet/internal/wallet"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrDuplicateID     = errors.New("session id already exists")
	ErrVersionConflict = errors.New("session modified concurrently")
)

// Store is the durable map from session id to session record. Put enforces
// the version token: the write succeeds only when the stored version equals
// the incoming one, and bumps it by one. Sessions are never deleted.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	ListByStatus(ctx context.Context, st Status) ([]*Session, error)
	// PlayingByParticipant returns the playing session the identity is in,
	// or ErrNotFound.
	PlayingByParticipant(ctx context.Context, id wallet.Identity) (*Session, error)
	// WaitingByCreator returns the waiting session owned by the identity,
	// or ErrNotFound.
	WaitingByCreator(ctx context.Context, id wallet.Identity) (*Session, error)
}

// ValidID reports whether id is a well-formed session identifier. Every
// boundary rejects malformed ids before touching the store.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewID mints a collision-resistant session id.
func NewID() string { return uuid.NewString() }
