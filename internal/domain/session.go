// Package domain contains core domain types for the UEX relay.
package domain

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// CredentialState is the persisted two-state credential machine of a session.
type CredentialState string

const (
	StateUnauthenticated CredentialState = "UNAUTHENTICATED"
	StateAuthenticated   CredentialState = "AUTHENTICATED"
)

// Valid reports whether s is one of the known states.
func (s CredentialState) Valid() bool {
	return s == StateUnauthenticated || s == StateAuthenticated
}

// UserSession is the durable per-user record of thread assignment,
// marketplace credentials and notification dedup state.
type UserSession struct {
	UserID              string
	ThreadID            string
	State               CredentialState
	BearerToken         string
	SecretKey           string
	MarketplaceUsername string
	SeenNotificationIDs []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewSession returns an unauthenticated session bound to threadID.
func NewSession(userID, threadID string, now time.Time) *UserSession {
	return &UserSession{
		UserID:    userID,
		ThreadID:  threadID,
		State:     StateUnauthenticated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAuthenticated returns true once credentials have been accepted.
func (s *UserSession) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.BearerToken != "" && s.SecretKey != ""
}

// HasThread returns true if a private thread is assigned.
func (s *UserSession) HasThread() bool {
	return s.ThreadID != ""
}

// Authenticate stores the credential pair and moves the session to AUTHENTICATED.
// The marketplace username is kept when the credentials did not change and no
// new username is given.
func (s *UserSession) Authenticate(bearer, secret, username string, now time.Time) error {
	if bearer == "" || secret == "" {
		return fmt.Errorf("%w: bearer token and secret key are both required", ErrMalformedCredentials)
	}
	changed := s.BearerToken != bearer || s.SecretKey != secret
	s.BearerToken = bearer
	s.SecretKey = secret
	s.State = StateAuthenticated
	switch {
	case username != "":
		s.MarketplaceUsername = username
	case changed:
		s.MarketplaceUsername = ""
	}
	s.UpdatedAt = now
	return nil
}

// HasSeen reports whether a remote notification id was already forwarded.
func (s *UserSession) HasSeen(remoteID string) bool {
	return slices.Contains(s.SeenNotificationIDs, remoteID)
}

// MarkSeen appends remoteID to the dedup set. Returns false if it was already present.
func (s *UserSession) MarkSeen(remoteID string) bool {
	if s.HasSeen(remoteID) {
		return false
	}
	s.SeenNotificationIDs = append(s.SeenNotificationIDs, remoteID)
	return true
}

// Validate checks the invariants that every persisted session must hold.
func (s *UserSession) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("session user id is empty")
	}
	if !s.State.Valid() {
		return fmt.Errorf("unknown credential state %q", s.State)
	}
	if (s.BearerToken == "") != (s.SecretKey == "") {
		return fmt.Errorf("bearer token and secret key must be set together")
	}
	if s.State == StateAuthenticated && s.BearerToken == "" {
		return fmt.Errorf("authenticated session without credentials")
	}
	return nil
}

// Clone returns a deep copy.
func (s *UserSession) Clone() *UserSession {
	c := *s
	c.SeenNotificationIDs = slices.Clone(s.SeenNotificationIDs)
	return &c
}

// LogValue keeps credentials out of structured logs.
func (s *UserSession) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", s.UserID),
		slog.String("thread_id", s.ThreadID),
		slog.String("state", string(s.State)),
		slog.String("bearer_token", MaskSecret(s.BearerToken)),
		slog.String("secret_key", MaskSecret(s.SecretKey)),
		slog.String("marketplace_username", s.MarketplaceUsername),
		slog.Int("seen", len(s.SeenNotificationIDs)),
	)
}

// MaskSecret returns a redacted form of a credential that is safe to log.
func MaskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "****"
}
