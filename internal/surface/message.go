// Package surface is the chat-thread Messaging Surface: private threads,
// message delivery over websocket and the thread lifecycle callbacks.
package surface

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

//go:generate mockgen -destination=mock/mock_messenger.go -package=mock . Messenger

// ErrThreadNotFound is returned when delivering to a thread that no longer exists.
var ErrThreadNotFound = errors.New("thread not found")

// Messenger is what the relay core needs from the chat platform.
type Messenger interface {
	// Deliver posts msg into threadID.
	Deliver(ctx context.Context, threadID string, msg Message) error

	// CreatePrivateThread allocates a new private thread for userID.
	CreatePrivateThread(ctx context.Context, userID string) (string, error)

	// ThreadExists reports whether threadID is still open.
	ThreadExists(ctx context.Context, threadID string) (bool, error)
}

// Kind classifies a delivered message.
type Kind string

const (
	KindNotification         Kind = "notification"
	KindNegotiationStarted   Kind = "negotiation_started"
	KindNegotiationReply     Kind = "negotiation_reply"
	KindNegotiationCompleted Kind = "negotiation_completed"
	KindEvent                Kind = "event"
	KindNotice               Kind = "notice"
)

// Message is the formatted content delivered into a thread.
type Message struct {
	Kind   Kind      `json:"kind"`
	Title  string    `json:"title"`
	Sender string    `json:"sender,omitempty"`
	Body   string    `json:"body"`
	Link   string    `json:"link,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Render returns the text form shown in the thread. Replies quote this text,
// so the link line must keep the "[label](url)" shape.
func (m Message) Render() string {
	var b strings.Builder
	if m.Title != "" {
		b.WriteString("📩 " + m.Title + "\n")
	}
	if m.Sender != "" {
		fmt.Fprintf(&b, "👤 Sender: **%s**\n", m.Sender)
	}
	if m.Body != "" {
		b.WriteString("💬 " + m.Body + "\n")
	}
	if m.Link != "" {
		fmt.Fprintf(&b, "🔗 [Open on UEX](%s)\n", m.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Links builds marketplace URLs embedded in delivered messages.
type Links struct {
	SiteURL string
}

// DefaultSiteURL is the public UEX site.
const DefaultSiteURL = "https://uexcorp.space"

func (l Links) base() string {
	site := strings.TrimRight(l.SiteURL, "/")
	if site == "" {
		site = DefaultSiteURL
	}
	return site
}

// Redirect resolves a redirect path returned by the notifications API.
func (l Links) Redirect(path string) string {
	return l.base() + "/" + strings.TrimLeft(path, "/")
}

// Negotiation returns the marketplace page of a negotiation.
func (l Links) Negotiation(hash string) string {
	return l.Redirect("marketplace/negotiation/hash/" + hash)
}

// Prefix is the URL prefix every generated link starts with.
func (l Links) Prefix() string {
	return l.base() + "/"
}
