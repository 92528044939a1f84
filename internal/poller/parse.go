package poller

import (
	"strings"
	"unicode"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/uex"
)

// UnknownSender is used when no sender can be recovered from a notification.
const UnknownSender = "unknown"

// ParseNotification turns a raw notification into its forwarded form.
func ParseNotification(n uex.Notification) domain.PendingNotification {
	sender, body := SplitSender(n.Message)
	return domain.PendingNotification{
		RemoteID:     string(n.ID),
		Sender:       sender,
		Body:         body,
		RedirectPath: n.Redir,
	}
}

// SplitSender recovers the sender of a notification message. "alice: hey"
// splits on the first colon. Without a colon, a leading alphanumeric word is
// taken as the sender. Anything else is attributed to UnknownSender.
func SplitSender(message string) (sender, body string) {
	msg := strings.TrimSpace(message)

	if before, after, ok := strings.Cut(msg, ":"); ok {
		if s := strings.TrimSpace(before); s != "" {
			return s, strings.TrimSpace(after)
		}
	}

	if first, rest, ok := strings.Cut(msg, " "); ok && isAlphanumeric(first) {
		return first, strings.TrimSpace(rest)
	}
	return UnknownSender, msg
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
