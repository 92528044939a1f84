// Package storetest opens throwaway repositories for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/ashureev/uex-relay/internal/store"
)

// New returns a SQLite repository in a temporary directory that is closed when
// the test ends.
func New(tb testing.TB) *store.SQLStore {
	tb.Helper()
	repo, err := store.NewSQLite(filepath.Join(tb.TempDir(), "relay.db"))
	if err != nil {
		tb.Fatalf("open test store: %v", err)
	}
	tb.Cleanup(func() {
		if err := repo.Close(); err != nil {
			tb.Errorf("close test store: %v", err)
		}
	})
	return repo
}
