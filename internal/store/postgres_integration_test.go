package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("RELAY_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("RELAY_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

func TestPostgresIntegrationRoundTrip(t *testing.T) {
	dsn := postgresIntegrationDSN(t)

	s, err := Open(dsn)
	require.NoError(t, err)
	ctx := context.Background()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id LIKE 'it-%'`)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM negotiation_links WHERE hash LIKE 'it-%'`)
		_ = s.Close()
	})

	sess := domain.NewSession("it-u1", "it-t1", time.Now())
	require.NoError(t, sess.Authenticate("bearer", "secret", "it-bob", time.Now()))
	require.NoError(t, s.PutSession(ctx, sess))

	updated, err := s.UpdateSession(ctx, "it-u1", func(sess *domain.UserSession) error {
		sess.MarkSeen("42")
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	found, err := s.FindByMarketplaceUsername(ctx, "IT-BOB")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []string{"42"}, found.SeenNotificationIDs)

	userID, err := s.FindByThreadID(ctx, "it-t1")
	require.NoError(t, err)
	assert.Equal(t, "it-u1", userID)

	require.NoError(t, s.PutLink(ctx, &domain.NegotiationLink{Hash: "it-h1", Buyer: "b", Seller: "s"}))
	link, err := s.GetLink(ctx, "it-h1")
	require.NoError(t, err)
	require.NotNil(t, link)
	require.NoError(t, s.DeleteLink(ctx, "it-h1"))
}
