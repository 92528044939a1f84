// Package reply posts a user's thread reply back to the marketplace
// negotiation it answers.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/store"
	"github.com/ashureev/uex-relay/internal/surface"
	"github.com/ashureev/uex-relay/internal/uex"
)

// Poster sends negotiation messages.
type Poster interface {
	PostReply(ctx context.Context, creds uex.Credentials, hash, message string) error
}

// Correlator recovers the negotiation hash from a quoted message and posts
// the reply with the user's credentials. Replies are never retried.
type Correlator struct {
	sessions store.SessionStore
	remote   Poster
	pattern  *regexp.Regexp
}

// NewCorrelator creates a correlator recognizing links under links.Prefix().
func NewCorrelator(sessions store.SessionStore, remote Poster, links surface.Links) *Correlator {
	return &Correlator{
		sessions: sessions,
		remote:   remote,
		pattern:  regexp.MustCompile(regexp.QuoteMeta(links.Prefix()) + `[^\s)]*?hash/([^\s)/?#]+)`),
	}
}

// ExtractHash returns the negotiation hash embedded in a rendered message.
func (c *Correlator) ExtractHash(quoted string) (string, error) {
	m := c.pattern.FindStringSubmatch(quoted)
	if m == nil {
		return "", domain.ErrHashNotFound
	}
	return m[1], nil
}

// Submit posts text as a reply to the negotiation referenced by quoted.
// It returns the hash the reply was posted to.
func (c *Correlator) Submit(ctx context.Context, userID, quoted, text string) (string, error) {
	hash, err := c.ExtractHash(quoted)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return hash, fmt.Errorf("%w: empty reply", domain.ErrInvalidPayload)
	}

	sess, err := c.sessions.GetSession(ctx, userID)
	if err != nil {
		return hash, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || !sess.IsAuthenticated() {
		return hash, domain.ErrNotAuthenticated
	}

	if err := c.remote.PostReply(ctx, uex.CredentialsOf(sess), hash, text); err != nil {
		slog.Warn("Reply rejected", "user_id", userID, "hash", hash, "error", err)
		return hash, fmt.Errorf("post reply: %w", err)
	}
	slog.Info("Reply posted", "user_id", userID, "hash", hash)
	return hash, nil
}
