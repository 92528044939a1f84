// Package bot is the chat-side dispatcher: it opens private threads, routes
// user messages to the credential gate or the reply correlator and reacts to
// thread lifecycle events.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/uex-relay/internal/credentials"
	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/poller"
	"github.com/ashureev/uex-relay/internal/store"
	"github.com/ashureev/uex-relay/internal/surface"
	"github.com/ashureev/uex-relay/internal/uex"
)

const welcomeText = `Here is how to get your Bearer Token and Secret Key on UEX.

Bearer Token
1. Sign in to the UEX website.
2. Scroll to the bottom of the page and open the API link.
3. In the API documentation, open MY APPS.
4. Press Get Started Now and accept the Terms and Conditions.
5. Create a new app (any name, for example "Chat Relay").
6. Scroll to the bottom of the app page and copy your Bearer Token.

Secret Key
1. Open your profile in the top right corner.
2. Copy the Secret Key shown there.

Paste both keys in this thread using this format:
bearer:YOUR_BEARER_TOKEN secret:YOUR_SECRET_KEY
You may add username:YOUR_UEX_USERNAME as well.

Do not share these keys with anyone. They are only used to read your UEX notifications and post your replies.`

const (
	noticeThreadActive = "You already have an active thread."
	noticeThreadReady  = "Thread created! Check your private thread."
	noticeCredsSaved   = "✅ Credentials saved! Checking your notifications..."
	noticeCredsFormat  = "❌ Wrong format. Use: `bearer:<token> secret:<secret_key>` (optionally `username:<name>`)."
	noticeReplySent    = "✅ Reply sent to UEX!"
	noticeNoHash       = "❌ Could not find the negotiation link in the message you replied to."
	noticeNeedsReply   = "Reply to a notification to answer it on UEX."
)

// CredentialSubmitter stores credentials typed by a user.
type CredentialSubmitter interface {
	Submit(ctx context.Context, userID, text string) (*domain.UserSession, error)
}

// ReplySubmitter posts a reply to the negotiation quoted by the user.
type ReplySubmitter interface {
	Submit(ctx context.Context, userID, quoted, text string) (string, error)
}

// Threads is the live side of the Messaging Surface.
type Threads interface {
	CloseThread(threadID string)
	DiscardBacklog(threadID string)
	Stats() surface.HubStats
}

// CycleSource reports the last poll cycle.
type CycleSource interface {
	LastCycle() poller.CycleReport
}

// Deps are the collaborators of a Bot. Threads and Polls are optional.
type Deps struct {
	Sessions    store.SessionStore
	Messenger   surface.Messenger
	Credentials CredentialSubmitter
	Replies     ReplySubmitter
	Threads     Threads
	Polls       CycleSource
}

// Bot implements surface.Conversation.
type Bot struct {
	sessions  store.SessionStore
	messenger surface.Messenger
	creds     CredentialSubmitter
	replies   ReplySubmitter
	threads   Threads
	polls     CycleSource
	now       func() time.Time
}

var _ surface.Conversation = (*Bot)(nil)

// New creates a Bot.
func New(d Deps) *Bot {
	return &Bot{
		sessions:  d.Sessions,
		messenger: d.Messenger,
		creds:     d.Credentials,
		replies:   d.Replies,
		threads:   d.Threads,
		polls:     d.Polls,
		now:       time.Now,
	}
}

// CurrentThread returns the thread assigned to userID, or "".
func (b *Bot) CurrentThread(ctx context.Context, userID string) (string, error) {
	sess, err := b.sessions.GetSession(ctx, userID)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.ThreadID, nil
}

// OpenThread returns the user's live thread or creates a new one. A session
// whose thread is gone is replaced by a fresh one.
func (b *Bot) OpenThread(ctx context.Context, userID string) (surface.OpenResult, error) {
	if userID == "" {
		return surface.OpenResult{}, domain.ErrInvalidIdentity
	}

	sess, err := b.sessions.GetSession(ctx, userID)
	if err != nil {
		return surface.OpenResult{}, fmt.Errorf("load session: %w", err)
	}
	if sess != nil && sess.HasThread() {
		exists, err := b.messenger.ThreadExists(ctx, sess.ThreadID)
		if err != nil {
			return surface.OpenResult{}, fmt.Errorf("check thread: %w", err)
		}
		if exists {
			return surface.OpenResult{ThreadID: sess.ThreadID, Notice: noticeThreadActive}, nil
		}
		slog.Info("Superseding stale thread", "user_id", userID, "thread_id", sess.ThreadID)
		if b.threads != nil {
			b.threads.DiscardBacklog(sess.ThreadID)
		}
	}

	threadID, err := b.messenger.CreatePrivateThread(ctx, userID)
	if err != nil {
		return surface.OpenResult{}, fmt.Errorf("create thread: %w", err)
	}
	fresh := domain.NewSession(userID, threadID, b.now().UTC())
	if err := b.sessions.PutSession(ctx, fresh); err != nil {
		return surface.OpenResult{}, fmt.Errorf("store session: %w", err)
	}

	if err := b.messenger.Deliver(ctx, threadID, surface.Message{
		Kind:  surface.KindNotice,
		Title: "Welcome",
		Body:  welcomeText,
	}); err != nil {
		slog.Warn("Failed to post welcome message", "user_id", userID, "thread_id", threadID, "error", err)
	}
	slog.Info("Thread opened", "user_id", userID, "thread_id", threadID)
	return surface.OpenResult{ThreadID: threadID, Created: true, Notice: noticeThreadReady}, nil
}

// HandleMessage routes a message typed in a thread and returns the notice
// shown to the user.
func (b *Bot) HandleMessage(ctx context.Context, userID string, in surface.Inbound) (string, error) {
	sess, err := b.sessions.GetSession(ctx, userID)
	if err != nil {
		return "Something went wrong, please retry.", fmt.Errorf("load session: %w", err)
	}

	authenticated := sess != nil && sess.IsAuthenticated()
	quoted := strings.TrimSpace(in.ReplyTo) != ""
	switch {
	case authenticated && quoted:
		return b.submitReply(ctx, userID, in)
	case !authenticated || credentials.LooksLikeCredentials(in.Content):
		return b.submitCredentials(ctx, userID, sess, in)
	default:
		return noticeNeedsReply, nil
	}
}

func (b *Bot) submitCredentials(ctx context.Context, userID string, sess *domain.UserSession, in surface.Inbound) (string, error) {
	if sess == nil && in.ThreadID != "" {
		if err := b.sessions.PutSession(ctx, domain.NewSession(userID, in.ThreadID, b.now().UTC())); err != nil {
			return "Something went wrong, please retry.", fmt.Errorf("store session: %w", err)
		}
	}

	_, err := b.creds.Submit(ctx, userID, in.Content)
	switch {
	case err == nil:
		return noticeCredsSaved, nil
	case errors.Is(err, domain.ErrMalformedCredentials):
		return noticeCredsFormat, err
	default:
		return "Could not save your credentials, please retry.", err
	}
}

func (b *Bot) submitReply(ctx context.Context, userID string, in surface.Inbound) (string, error) {
	_, err := b.replies.Submit(ctx, userID, in.ReplyTo, in.Content)
	if err == nil {
		return noticeReplySent, nil
	}

	var remote *uex.RemoteError
	switch {
	case errors.Is(err, domain.ErrHashNotFound):
		return noticeNoHash, err
	case errors.Is(err, domain.ErrNotAuthenticated):
		return noticeCredsFormat, err
	case errors.Is(err, domain.ErrInvalidPayload):
		return "The reply is empty.", err
	case errors.As(err, &remote):
		return fmt.Sprintf("⚠️ Sending failed (%d): %s", remote.StatusCode, remote.Body), err
	case errors.Is(err, domain.ErrTransport):
		return fmt.Sprintf("💥 Connection error: %v", err), err
	default:
		return "Could not send your reply, please retry.", err
	}
}

// MemberLeft removes the session of userID when they leave the thread bound
// to it. Leaving any other thread is ignored.
func (b *Bot) MemberLeft(ctx context.Context, threadID, userID string) error {
	deleted, err := b.sessions.DeleteSessionForThread(ctx, userID, threadID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return nil
	}
	if b.threads != nil {
		b.threads.DiscardBacklog(threadID)
	}
	slog.Info("Member left thread, session removed", "user_id", userID, "thread_id", threadID)
	return nil
}

// ThreadDeleted removes the session owning threadID and disconnects its clients.
func (b *Bot) ThreadDeleted(ctx context.Context, threadID string) error {
	owner, err := b.sessions.FindByThreadID(ctx, threadID)
	if err != nil {
		return fmt.Errorf("find thread owner: %w", err)
	}
	if owner != "" {
		deleted, err := b.sessions.DeleteSessionForThread(ctx, owner, threadID)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if deleted {
			slog.Info("Thread deleted, session removed", "user_id", owner, "thread_id", threadID)
		}
	}
	if b.threads != nil {
		b.threads.CloseThread(threadID)
	}
	return nil
}

// Stats is the operator view of the relay.
type Stats struct {
	Sessions         int              `json:"sessions"`
	Threads          int              `json:"threads"`
	Authenticated    int              `json:"authenticated"`
	LastPollAt       time.Time        `json:"last_poll_at,omitempty"`
	LastPollSeconds  float64          `json:"last_poll_seconds"`
	LastPollUsers    int              `json:"last_poll_users"`
	LastPollFailures int              `json:"last_poll_failures"`
	Live             surface.HubStats `json:"live"`
}

// Stats gathers counters from the store, the poller and the hub.
func (b *Bot) Stats(ctx context.Context) (Stats, error) {
	st, err := b.sessions.SessionStats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("session stats: %w", err)
	}
	out := Stats{
		Sessions:      st.Sessions,
		Threads:       st.Threads,
		Authenticated: st.Authenticated,
	}
	if b.polls != nil {
		last := b.polls.LastCycle()
		out.LastPollAt = last.StartedAt
		out.LastPollSeconds = last.Duration.Seconds()
		out.LastPollUsers = last.Users
		out.LastPollFailures = last.Failed
	}
	if b.threads != nil {
		out.Live = b.threads.Stats()
	}
	return out, nil
}
