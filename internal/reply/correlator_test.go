package reply

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/store/storetest"
	"github.com/ashureev/uex-relay/internal/surface"
	"github.com/ashureev/uex-relay/internal/uex"
	"github.com/ashureev/uex-relay/internal/uex/mock"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var links = surface.Links{SiteURL: "https://uexcorp.space"}

func TestExtractHash(t *testing.T) {
	c := NewCorrelator(nil, nil, links)

	tests := []struct {
		name   string
		quoted string
		want   string
	}{
		{
			name:   "rendered notification",
			quoted: surface.Message{Sender: "alice", Body: "hey", Link: links.Negotiation("h1")}.Render(),
			want:   "h1",
		},
		{
			name:   "bare link",
			quoted: "see https://uexcorp.space/marketplace/negotiation/hash/abc123 now",
			want:   "abc123",
		},
		{
			name:   "query string",
			quoted: "[Open](https://uexcorp.space/x/hash/zz9?tab=chat)",
			want:   "zz9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ExtractHash(tt.quoted)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractHashMissing(t *testing.T) {
	c := NewCorrelator(nil, nil, links)
	for _, quoted := range []string{
		"",
		"no link here",
		"https://uexcorp.space/marketplace/listing/42",
		"https://evil.example/hash/h1",
	} {
		_, err := c.ExtractHash(quoted)
		assert.ErrorIs(t, err, domain.ErrHashNotFound, quoted)
	}
}

func authenticated(t *testing.T, userID string) *domain.UserSession {
	t.Helper()
	sess := domain.NewSession(userID, "thr_"+userID, time.Now())
	require.NoError(t, sess.Authenticate("abc", "xyz", "bob", time.Now()))
	return sess
}

func TestSubmitPostsReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mock.NewMockAPI(ctrl)
	st := storetest.New(t)
	ctx := context.Background()
	require.NoError(t, st.PutSession(ctx, authenticated(t, "u1")))

	api.EXPECT().PostReply(gomock.Any(), uex.Credentials{BearerToken: "abc", SecretKey: "xyz"}, "h1", "deal").Return(nil)

	c := NewCorrelator(st, api, links)
	hash, err := c.Submit(ctx, "u1", "🔗 [Open on UEX](https://uexcorp.space/marketplace/negotiation/hash/h1)", "  deal ")
	require.NoError(t, err)
	assert.Equal(t, "h1", hash)
}

func TestSubmitWithoutHashMakesNoCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mock.NewMockAPI(ctrl)
	st := storetest.New(t)
	require.NoError(t, st.PutSession(context.Background(), authenticated(t, "u1")))

	_, err := NewCorrelator(st, api, links).Submit(context.Background(), "u1", "just a message", "deal")
	assert.ErrorIs(t, err, domain.ErrHashNotFound)
}

func TestSubmitRequiresAuthentication(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mock.NewMockAPI(ctrl)
	st := storetest.New(t)
	ctx := context.Background()
	require.NoError(t, st.PutSession(ctx, domain.NewSession("u1", "thr_1", time.Now())))

	c := NewCorrelator(st, api, links)
	_, err := c.Submit(ctx, "u1", links.Negotiation("h1"), "deal")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = c.Submit(ctx, "nobody", links.Negotiation("h1"), "deal")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := NewCorrelator(storetest.New(t), mock.NewMockAPI(ctrl), links)
	_, err := c.Submit(context.Background(), "u1", links.Negotiation("h1"), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestSubmitSurfacesRemoteFailures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"remote rejection", &uex.RemoteError{StatusCode: 403, Body: "forbidden"}, domain.ErrRemoteService},
		{"connection failure", fmt.Errorf("%w: dial tcp: refused", domain.ErrTransport), domain.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			api := mock.NewMockAPI(ctrl)
			st := storetest.New(t)
			require.NoError(t, st.PutSession(ctx, authenticated(t, "u1")))

			api.EXPECT().PostReply(gomock.Any(), gomock.Any(), "h1", "deal").Return(tt.err).Times(1)

			_, err := NewCorrelator(st, api, links).Submit(ctx, "u1", links.Negotiation("h1"), "deal")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var remote *uex.RemoteError
			if errors.As(tt.err, &remote) {
				assert.Contains(t, err.Error(), "forbidden")
			}
		})
	}
}
