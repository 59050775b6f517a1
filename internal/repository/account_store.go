package repository

import (
	"context"
	"errors"
	"time"

	"github.com/guayoyo/loyalty-service/internal/domain"
)

var (
	// ErrAccountNotFound is returned when no account exists for an id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateAccount is returned when registering an id that exists.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrSessionNotFound is returned when a session snapshot is absent or expired.
	ErrSessionNotFound = errors.New("session not found")
)

// AccountStore is the durable home of loyalty accounts. Exactly one
// implementation is chosen at startup.
type AccountStore interface {
	Mode() domain.StoreMode
	Find(ctx context.Context, id string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	AddVisit(ctx context.Context, id string) error
	AddRedemption(ctx context.Context, id string, tierID int) error
	Ping(ctx context.Context) error
}

// SessionStore persists the snapshot of a session's account between
// process restarts.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, snapshot *domain.Account, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*domain.Account, error)
	Delete(ctx context.Context, sessionID string) error
}
