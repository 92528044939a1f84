package uex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{BearerToken: "abc", SecretKey: "xyz"}

func TestFetchNotifications(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/user_notifications", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "xyz", r.Header.Get("secret-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","data":[
			{"id": 1, "message": "alice: hey", "redir": "marketplace/negotiation/hash/h1"},
			{"id": "2", "message": "system update", "redir": ""}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	got, err := c.FetchNotifications(context.Background(), testCreds)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, RemoteID("1"), got[0].ID)
	assert.Equal(t, "alice: hey", got[0].Message)
	assert.Equal(t, "marketplace/negotiation/hash/h1", got[0].Redir)
	assert.Equal(t, RemoteID("2"), got[1].ID)
}

func TestFetchNotificationsRemoteError(t *testing.T) {
	long := strings.Repeat("x", 500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.FetchNotifications(context.Background(), testCreds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRemoteService))
	assert.False(t, errors.Is(err, domain.ErrTransport))

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusForbidden, remote.StatusCode)
	assert.Len(t, remote.Body, 200)
}

func TestFetchNotificationsTimeoutIsTransport(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.FetchNotifications(context.Background(), testCreds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
}

func TestPostReply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/marketplace_negotiations_messages", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Production: true})
	require.NoError(t, c.PostReply(context.Background(), testCreds, "h1", "deal"))
	assert.Equal(t, "h1", got["hash"])
	assert.Equal(t, "deal", got["message"])
	assert.EqualValues(t, 1, got["is_production"])
}

func TestResolveAndLookupUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		if name := r.URL.Query().Get("username"); name != "" {
			_, _ = w.Write([]byte(`{"username":"Bob"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","data":{"username":"alice"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	name, err := c.ResolveUsername(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	name, err = c.LookupUsername(context.Background(), testCreds, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)
}

func TestResolveUsernameMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).ResolveUsername(context.Background(), testCreds)
	assert.ErrorIs(t, err, domain.ErrRemoteService)
}

func TestRemoteIDUnmarshal(t *testing.T) {
	var ids []RemoteID
	require.NoError(t, json.Unmarshal([]byte(`[1, "2", null, 3.0]`), &ids))
	assert.Equal(t, []RemoteID{"1", "2", "", "3.0"}, ids)

	var bad RemoteID
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "héé", Truncate("héééé", 3))
}
