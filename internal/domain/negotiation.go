package domain

import "time"

// NegotiationLink correlates a marketplace negotiation with its two parties.
type NegotiationLink struct {
	Hash      string
	Buyer     string
	Seller    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PendingNotification is a remote item considered for forwarding during a poll cycle.
// It is never persisted.
type PendingNotification struct {
	RemoteID     string
	Sender       string
	Body         string
	RedirectPath string
}
