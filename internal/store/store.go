// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
)

//go:generate mockgen -destination=mock/mock_store.go -package=mock . SessionStore

// SessionStore persists user sessions. Lookups return (nil, nil) when nothing matches.
type SessionStore interface {
	// GetSession retrieves a session by chat user ID.
	GetSession(ctx context.Context, userID string) (*domain.UserSession, error)

	// PutSession atomically replaces the whole session record.
	PutSession(ctx context.Context, session *domain.UserSession) error

	// UpdateSession loads the session, applies fn and writes the result in one
	// transaction. Writes for the same user are serialized. Returns (nil, nil)
	// without calling fn when the session does not exist.
	UpdateSession(ctx context.Context, userID string, fn func(*domain.UserSession) error) (*domain.UserSession, error)

	// DeleteSession removes a session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, userID string) error

	// DeleteSessionForThread removes the session of userID only if it is still
	// bound to threadID, and reports whether it did.
	DeleteSessionForThread(ctx context.Context, userID, threadID string) (bool, error)

	// FindByMarketplaceUsername returns the most recently updated session bound to name.
	FindByMarketplaceUsername(ctx context.Context, name string) (*domain.UserSession, error)

	// FindByThreadID returns the user ID owning threadID, or "" if none.
	FindByThreadID(ctx context.Context, threadID string) (string, error)

	// ListAuthenticated returns every session holding credentials.
	ListAuthenticated(ctx context.Context) ([]*domain.UserSession, error)

	// SessionStats returns aggregate counters.
	SessionStats(ctx context.Context) (SessionStats, error)
}

// LinkStore persists negotiation links.
type LinkStore interface {
	// PutLink creates or overwrites the link for link.Hash.
	PutLink(ctx context.Context, link *domain.NegotiationLink) error

	// GetLink retrieves a link by negotiation hash.
	GetLink(ctx context.Context, hash string) (*domain.NegotiationLink, error)

	// DeleteLink removes a link. Deleting a missing link is not an error.
	DeleteLink(ctx context.Context, hash string) error

	// DeleteLinksOlderThan removes links not updated since cutoff.
	DeleteLinksOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository is the full durable state of the relay.
type Repository interface {
	SessionStore
	LinkStore

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// SessionStats summarizes the session table.
type SessionStats struct {
	Sessions      int `json:"sessions"`
	Threads       int `json:"threads"`
	Authenticated int `json:"authenticated"`
}
