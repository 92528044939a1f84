package domain

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateTransitionsState(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewSession("u1", "t1", now)
	require.False(t, s.IsAuthenticated())

	require.NoError(t, s.Authenticate("abc", "xyz", "bob", now))
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "bob", s.MarketplaceUsername)
	assert.NoError(t, s.Validate())
}

func TestAuthenticateRejectsHalfCredentials(t *testing.T) {
	s := NewSession("u1", "t1", time.Now())
	err := s.Authenticate("abc", "", "", time.Now())
	require.ErrorIs(t, err, ErrMalformedCredentials)
	assert.Equal(t, StateUnauthenticated, s.State)
	assert.Empty(t, s.BearerToken)
}

func TestAuthenticateKeepsUsernameWhenCredentialsUnchanged(t *testing.T) {
	now := time.Now()
	s := NewSession("u1", "t1", now)
	require.NoError(t, s.Authenticate("abc", "xyz", "bob", now))
	require.NoError(t, s.Authenticate("abc", "xyz", "", now))
	assert.Equal(t, "bob", s.MarketplaceUsername)

	require.NoError(t, s.Authenticate("new", "xyz", "", now))
	assert.Empty(t, s.MarketplaceUsername, "username belongs to the old credentials")
}

func TestMarkSeen(t *testing.T) {
	s := NewSession("u1", "t1", time.Now())
	assert.True(t, s.MarkSeen("1"))
	assert.False(t, s.MarkSeen("1"))
	assert.True(t, s.MarkSeen("2"))
	assert.Equal(t, []string{"1", "2"}, s.SeenNotificationIDs)
}

func TestValidate(t *testing.T) {
	s := NewSession("u1", "", time.Now())
	s.BearerToken = "only-bearer"
	assert.Error(t, s.Validate())

	s = NewSession("u1", "", time.Now())
	s.State = StateAuthenticated
	assert.Error(t, s.Validate())

	s = NewSession("", "", time.Now())
	assert.Error(t, s.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession("u1", "t1", time.Now())
	s.MarkSeen("1")
	c := s.Clone()
	c.MarkSeen("2")
	assert.Len(t, s.SeenNotificationIDs, 1)
}

func TestLogValueRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	s := NewSession("u1", "t1", time.Now())
	require.NoError(t, s.Authenticate("bearer-token-value", "secret-key-value", "", time.Now()))
	logger.Info("session", "session", s)

	out := buf.String()
	assert.NotContains(t, out, "bearer-token-value")
	assert.NotContains(t, out, "secret-key-value")
	assert.True(t, strings.Contains(out, "bear****"))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		nil:                    http.StatusOK,
		ErrDestinationNotFound: http.StatusNotFound,
		ErrLinkNotFound:        http.StatusConflict,
		ErrInvalidIdentity:     http.StatusUnprocessableEntity,
		ErrInvalidPayload:      http.StatusBadRequest,
		ErrStoreFailure:        http.StatusInternalServerError,
		errors.New("boom"):     http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), "error %v", err)
	}
	assert.Equal(t, "link_not_found", Code(ErrLinkNotFound))
}
