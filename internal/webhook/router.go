package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/store"
	"github.com/ashureev/uex-relay/internal/surface"
	"github.com/ashureev/uex-relay/internal/uex"
)

const maxRawBody = 1500

// Router resolves destination threads for webhook events and forwards them.
type Router struct {
	sessions  store.SessionStore
	links     store.LinkStore
	messenger surface.Messenger
	site      surface.Links
}

// NewRouter creates a webhook router.
func NewRouter(sessions store.SessionStore, links store.LinkStore, messenger surface.Messenger, site surface.Links) *Router {
	return &Router{
		sessions:  sessions,
		links:     links,
		messenger: messenger,
		site:      site,
	}
}

// Route handles ev received on the route of recipientID, the chat user that
// owns the webhook.
func (r *Router) Route(ctx context.Context, recipientID string, ev Event) error {
	switch ev := ev.(type) {
	case NegotiationStarted:
		return r.started(ctx, recipientID, ev)
	case UserReply:
		return r.reply(ctx, recipientID, ev)
	case NegotiationCompleted:
		return r.completed(ctx, recipientID, ev)
	case Unknown:
		return r.unknown(ctx, recipientID, ev)
	default:
		return fmt.Errorf("%w: unsupported event %T", domain.ErrInvalidPayload, ev)
	}
}

func (r *Router) started(ctx context.Context, recipientID string, ev NegotiationStarted) error {
	if err := r.links.PutLink(ctx, &domain.NegotiationLink{
		Hash:   ev.Hash,
		Buyer:  ev.Buyer,
		Seller: ev.Seller,
	}); err != nil {
		return fmt.Errorf("store negotiation link: %w", err)
	}

	body := fmt.Sprintf("%s started a negotiation with %s.", ev.Buyer, ev.Seller)
	if ev.ListingTitle != "" {
		body = fmt.Sprintf("%s started a negotiation with %s for \"%s\".", ev.Buyer, ev.Seller, ev.ListingTitle)
	}
	return r.deliverToUser(ctx, recipientID, surface.Message{
		Kind:   surface.KindNegotiationStarted,
		Title:  "Negotiation started",
		Sender: ev.Buyer,
		Body:   body,
		Link:   r.site.Negotiation(ev.Hash),
	})
}

func (r *Router) reply(ctx context.Context, recipientID string, ev UserReply) error {
	link, err := r.links.GetLink(ctx, ev.Hash)
	if err != nil {
		return fmt.Errorf("load negotiation link: %w", err)
	}
	if link == nil {
		return fmt.Errorf("%w: %s", domain.ErrLinkNotFound, ev.Hash)
	}

	author := strings.TrimSpace(ev.ClientUsername)
	if author == "" {
		return fmt.Errorf("%w: reply without client_username", domain.ErrInvalidIdentity)
	}

	msg := surface.Message{
		Kind:   surface.KindNegotiationReply,
		Title:  "New negotiation message",
		Sender: author,
		Body:   ev.Message,
		Link:   r.site.Negotiation(ev.Hash),
	}

	if strings.EqualFold(author, link.Seller) {
		buyer, err := r.sessions.FindByMarketplaceUsername(ctx, link.Buyer)
		if err != nil {
			return fmt.Errorf("find buyer session: %w", err)
		}
		if buyer == nil {
			return fmt.Errorf("%w: no session for buyer %s", domain.ErrDestinationNotFound, link.Buyer)
		}
		return r.deliver(ctx, buyer, msg)
	}
	return r.deliverToUser(ctx, recipientID, msg)
}

func (r *Router) completed(ctx context.Context, recipientID string, ev NegotiationCompleted) error {
	if err := r.links.DeleteLink(ctx, ev.Hash); err != nil {
		return fmt.Errorf("delete negotiation link: %w", err)
	}

	var closedBy string
	switch ev.Kind {
	case CompletedByClient:
		closedBy = "the client"
	case CompletedByAdvertiser:
		closedBy = "the advertiser"
	default:
		closedBy = "the marketplace"
	}
	body := "Negotiation closed by " + closedBy + "."
	if ev.ListingTitle != "" {
		body = fmt.Sprintf("Negotiation for \"%s\" closed by %s.", ev.ListingTitle, closedBy)
	}
	return r.deliverToUser(ctx, recipientID, surface.Message{
		Kind:  surface.KindNegotiationCompleted,
		Title: "Negotiation completed",
		Body:  body,
		Link:  r.site.Negotiation(ev.Hash),
	})
}

func (r *Router) unknown(ctx context.Context, recipientID string, ev Unknown) error {
	return r.deliverToUser(ctx, recipientID, surface.Message{
		Kind:  surface.KindEvent,
		Title: "Marketplace event: " + ev.Name,
		Body:  "```\n" + uex.Truncate(string(ev.Raw), maxRawBody) + "\n```",
	})
}

func (r *Router) deliverToUser(ctx context.Context, userID string, msg surface.Message) error {
	sess, err := r.sessions.GetSession(ctx, userID)
	if err != nil {
		return fmt.Errorf("load recipient session: %w", err)
	}
	if sess == nil {
		return fmt.Errorf("%w: no session for user %s", domain.ErrDestinationNotFound, userID)
	}
	return r.deliver(ctx, sess, msg)
}

func (r *Router) deliver(ctx context.Context, sess *domain.UserSession, msg surface.Message) error {
	if !sess.HasThread() {
		return fmt.Errorf("%w: user %s has no thread", domain.ErrDestinationNotFound, sess.UserID)
	}
	err := r.messenger.Deliver(ctx, sess.ThreadID, msg)
	switch {
	case err == nil:
		slog.Info("Webhook event forwarded", "user_id", sess.UserID, "thread_id", sess.ThreadID, "kind", msg.Kind)
		return nil
	case errors.Is(err, surface.ErrThreadNotFound):
		return fmt.Errorf("%w: thread %s", domain.ErrDestinationNotFound, sess.ThreadID)
	case errors.Is(err, domain.ErrStoreFailure):
		return err
	default:
		return fmt.Errorf("%w: deliver to thread %s: %v", domain.ErrTransport, sess.ThreadID, err)
	}
}
