// Package credentials turns free-text credential submissions into
// authenticated sessions.
package credentials

import (
	"fmt"
	"strings"

	"github.com/ashureev/uex-relay/internal/domain"
)

const (
	labelBearer   = "bearer"
	labelSecret   = "secret"
	labelUsername = "username"
)

// Parsed is the result of parsing a credential message.
type Parsed struct {
	BearerToken string
	SecretKey   string
	Username    string
}

var stripBrackets = strings.NewReplacer("<", "", ">", "")

func splitLabel(token string) (label, value string, ok bool) {
	label, value, ok = strings.Cut(token, ":")
	if !ok {
		return "", "", false
	}
	label = strings.ToLower(stripBrackets.Replace(label))
	switch label {
	case labelBearer, labelSecret, labelUsername:
		return label, stripBrackets.Replace(value), true
	}
	return "", "", false
}

// Parse extracts bearer, secret and the optional username from text.
// Tokens look like "label:value", appear in any order and are separated by
// whitespace. A label with nothing after the colon takes the next unlabeled
// token as its value. Repeated labels keep the last value.
func Parse(text string) (Parsed, error) {
	var p Parsed
	tokens := strings.Fields(text)

	for i := 0; i < len(tokens); i++ {
		label, value, ok := splitLabel(tokens[i])
		if !ok {
			continue
		}
		if value == "" && i+1 < len(tokens) {
			if _, _, next := splitLabel(tokens[i+1]); !next {
				value = stripBrackets.Replace(tokens[i+1])
				i++
			}
		}

		switch label {
		case labelBearer:
			p.BearerToken = value
		case labelSecret:
			p.SecretKey = value
		case labelUsername:
			p.Username = value
		}
	}

	var missing []string
	if p.BearerToken == "" {
		missing = append(missing, labelBearer)
	}
	if p.SecretKey == "" {
		missing = append(missing, labelSecret)
	}
	if len(missing) > 0 {
		return Parsed{}, fmt.Errorf("%w: missing %s", domain.ErrMalformedCredentials, strings.Join(missing, " and "))
	}
	return p, nil
}

// LooksLikeCredentials reports whether text carries at least one credential label.
func LooksLikeCredentials(text string) bool {
	for _, tok := range strings.Fields(text) {
		if label, _, ok := splitLabel(tok); ok && label != labelUsername {
			return true
		}
	}
	return false
}
