package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/store"
	"github.com/ashureev/uex-relay/internal/uex"
)

// Resolver looks up marketplace usernames.
type Resolver interface {
	ResolveUsername(ctx context.Context, creds uex.Credentials) (string, error)
	LookupUsername(ctx context.Context, creds uex.Credentials, username string) (string, error)
}

var errCredentialsChanged = errors.New("credentials changed during resolution")

// Gate validates credential submissions and moves sessions to AUTHENTICATED.
type Gate struct {
	sessions store.SessionStore
	resolver Resolver
	timeout  time.Duration
	now      func() time.Time

	wg       sync.WaitGroup
	inflight sync.Map
}

// NewGate creates a gate. timeout bounds each background username lookup.
func NewGate(sessions store.SessionStore, resolver Resolver, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = uex.DefaultTimeout
	}
	return &Gate{
		sessions: sessions,
		resolver: resolver,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Submit parses text and stores the credentials on userID's session, creating
// the session if needed. Malformed input leaves any existing session untouched.
func (g *Gate) Submit(ctx context.Context, userID, text string) (*domain.UserSession, error) {
	if userID == "" {
		return nil, domain.ErrInvalidIdentity
	}
	parsed, err := Parse(text)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	sess, err := g.sessions.UpdateSession(ctx, userID, func(s *domain.UserSession) error {
		return s.Authenticate(parsed.BearerToken, parsed.SecretKey, parsed.Username, now)
	})
	if err != nil {
		return nil, fmt.Errorf("store credentials: %w", err)
	}
	if sess == nil {
		sess = domain.NewSession(userID, "", now)
		if err := sess.Authenticate(parsed.BearerToken, parsed.SecretKey, parsed.Username, now); err != nil {
			return nil, err
		}
		if err := g.sessions.PutSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("store credentials: %w", err)
		}
	}
	slog.Info("Credentials accepted", "session", sess)

	if sess.MarketplaceUsername == "" || parsed.Username != "" {
		g.ResolveLater(userID)
	}
	return sess, nil
}

// ResolveLater starts a best-effort background username resolution for
// userID. At most one resolution per user runs at a time.
func (g *Gate) ResolveLater(userID string) {
	if _, busy := g.inflight.LoadOrStore(userID, struct{}{}); busy {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.inflight.Delete(userID)

		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		if err := g.resolve(ctx, userID); err != nil {
			slog.Warn("Username resolution failed", "user_id", userID, "error", err)
		}
	}()
}

// Wait blocks until background resolutions have finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}

func (g *Gate) resolve(ctx context.Context, userID string) error {
	sess, err := g.sessions.GetSession(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil || !sess.IsAuthenticated() {
		return nil
	}

	creds := uex.CredentialsOf(sess)
	var name string
	if sess.MarketplaceUsername == "" {
		name, err = g.resolver.ResolveUsername(ctx, creds)
	} else {
		name, err = g.resolver.LookupUsername(ctx, creds, sess.MarketplaceUsername)
	}
	if err != nil {
		return err
	}
	if name == "" || name == sess.MarketplaceUsername {
		return nil
	}

	_, err = g.sessions.UpdateSession(ctx, userID, func(s *domain.UserSession) error {
		if s.BearerToken != creds.BearerToken || s.SecretKey != creds.SecretKey {
			return errCredentialsChanged
		}
		s.MarketplaceUsername = name
		s.UpdatedAt = g.now().UTC()
		return nil
	})
	if errors.Is(err, errCredentialsChanged) {
		return nil
	}
	if err == nil {
		slog.Info("Marketplace username resolved", "user_id", userID, "username", name)
	}
	return err
}
