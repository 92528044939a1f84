// Package webhook routes marketplace negotiation events to the chat threads
// of the users involved.
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Event type names as they appear in the webhook route.
const (
	TypeNegotiationStarted             = "negotiation_started"
	TypeUserReply                      = "user_reply"
	TypeNegotiationCompletedClient     = "negotiation_completed_client"
	TypeNegotiationCompletedAdvertiser = "negotiation_completed_advertiser"
)

// Event is one of NegotiationStarted, UserReply, NegotiationCompleted or Unknown.
type Event interface {
	EventType() string
	isEvent()
}

// NegotiationStarted opens a negotiation between buyer and seller.
type NegotiationStarted struct {
	Hash         string `json:"hash" validate:"required,max=128"`
	Buyer        string `json:"buyer" validate:"required"`
	Seller       string `json:"seller" validate:"required"`
	ListingTitle string `json:"listing_title"`
}

// UserReply is a message posted by either side of a negotiation.
type UserReply struct {
	Hash                 string `json:"hash" validate:"required,max=128"`
	ClientUsername       string `json:"client_username"`
	ListingOwnerUsername string `json:"listing_owner_username"`
	Message              string `json:"message"`
}

// CompletionKind says which side closed the negotiation.
type CompletionKind string

const (
	CompletedByClient     CompletionKind = "client"
	CompletedByAdvertiser CompletionKind = "advertiser"
)

// NegotiationCompleted closes a negotiation.
type NegotiationCompleted struct {
	Kind         CompletionKind `json:"-"`
	Hash         string         `json:"hash" validate:"required,max=128"`
	ListingTitle string         `json:"listing_title"`
	Buyer        string         `json:"buyer"`
	Seller       string         `json:"seller"`
}

// Unknown is any event type the relay does not interpret.
type Unknown struct {
	Name string
	Raw  []byte
}

func (NegotiationStarted) EventType() string { return TypeNegotiationStarted }
func (UserReply) EventType() string          { return TypeUserReply }
func (e NegotiationCompleted) EventType() string {
	return "negotiation_completed_" + string(e.Kind)
}
func (e Unknown) EventType() string { return e.Name }

func (NegotiationStarted) isEvent()   {}
func (UserReply) isEvent()            {}
func (NegotiationCompleted) isEvent() {}
func (Unknown) isEvent()              {}

var validate = validator.New()

// Decode parses body according to eventType. Unrecognized types decode to
// Unknown and keep the raw body.
func Decode(eventType string, body []byte) (Event, error) {
	switch strings.ToLower(eventType) {
	case TypeNegotiationStarted:
		var ev NegotiationStarted
		return decodeInto(body, &ev)
	case TypeUserReply:
		var ev UserReply
		return decodeInto(body, &ev)
	case TypeNegotiationCompletedClient:
		ev := NegotiationCompleted{Kind: CompletedByClient}
		return decodeInto(body, &ev)
	case TypeNegotiationCompletedAdvertiser:
		ev := NegotiationCompleted{Kind: CompletedByAdvertiser}
		return decodeInto(body, &ev)
	default:
		return Unknown{Name: eventType, Raw: body}, nil
	}
}

func decodeInto[T Event](body []byte, ev *T) (Event, error) {
	if err := json.Unmarshal(body, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return *ev, nil
}
