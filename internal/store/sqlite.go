package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/shared"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

var busyRetry = shared.RetryPolicy{Attempts: 3, Delay: 50 * time.Millisecond, Backoff: true}

// SQLStore implements Repository on database/sql. The same queries serve SQLite
// and Postgres; placeholders are rebound per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	// userLocks serializes UpdateSession per user, striped by user ID hash.
	userLocks [lockStripes]sync.Mutex
}

const lockStripes = 64

// ErrThreadTaken is returned when a session claims a thread another user owns.
var ErrThreadTaken = errors.New("thread already assigned to another session")

func (s *SQLStore) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.userLocks[h.Sum32()%lockStripes]
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		thread_id TEXT UNIQUE,
		credential_state TEXT NOT NULL,
		bearer_token TEXT,
		secret_key TEXT,
		marketplace_username TEXT,
		seen_ids_json TEXT NOT NULL DEFAULT '[]',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		CHECK ((bearer_token IS NULL) = (secret_key IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_username ON sessions(marketplace_username)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(credential_state)`,
	`CREATE TABLE IF NOT EXISTS negotiation_links (
		hash TEXT PRIMARY KEY,
		buyer TEXT NOT NULL,
		seller TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_updated ON negotiation_links(updated_at)`,
}

// NewSQLite creates a new SQLite-backed repository. Every commit is fsynced
// (synchronous=FULL) before it returns.
func NewSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, dialectSQLite)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: d, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreFailure, op, err)
}

func (s *SQLStore) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return shared.Retry(ctx, busyRetry, shared.IsSQLiteConflictError, func(ctx context.Context, attempt int) error {
		err := fn(ctx)
		if err != nil && shared.IsSQLiteConflictError(err) {
			slog.Debug("Store write hit a locked database, retrying", "op", op, "attempt", attempt)
		}
		return err
	})
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const sessionColumns = `user_id, thread_id, credential_state, bearer_token, secret_key,
	marketplace_username, seen_ids_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.UserSession, error) {
	var (
		sess                          domain.UserSession
		threadID, bearer, secret, usr sql.NullString
		state, seenJSON               string
		createdAt, updatedAt          int64
	)
	if err := row.Scan(&sess.UserID, &threadID, &state, &bearer, &secret, &usr, &seenJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	sess.ThreadID = threadID.String
	sess.State = domain.CredentialState(state)
	sess.BearerToken = bearer.String
	sess.SecretKey = secret.String
	sess.MarketplaceUsername = usr.String
	if err := json.Unmarshal([]byte(seenJSON), &sess.SeenNotificationIDs); err != nil {
		return nil, fmt.Errorf("decode seen notification ids: %w", err)
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	return &sess, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *SQLStore) getSession(ctx context.Context, q queryer, userID string) (*domain.UserSession, error) {
	row := q.QueryRowContext(ctx, s.rebind(`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ?`), userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get session", err)
	}
	return sess, nil
}

func (s *SQLStore) putSession(ctx context.Context, q queryer, sess *domain.UserSession) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	seen := sess.SeenNotificationIDs
	if seen == nil {
		seen = []string{}
	}
	seenJSON, err := json.Marshal(seen)
	if err != nil {
		return fmt.Errorf("encode seen notification ids: %w", err)
	}

	now := s.now()
	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
	INSERT INTO sessions (` + sessionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		thread_id = excluded.thread_id,
		credential_state = excluded.credential_state,
		bearer_token = excluded.bearer_token,
		secret_key = excluded.secret_key,
		marketplace_username = excluded.marketplace_username,
		seen_ids_json = excluded.seen_ids_json,
		updated_at = excluded.updated_at`

	_, err = q.ExecContext(ctx, s.rebind(query),
		sess.UserID, nullable(sess.ThreadID), string(sess.State),
		nullable(sess.BearerToken), nullable(sess.SecretKey), nullable(sess.MarketplaceUsername),
		string(seenJSON), createdAt.Unix(), now.Unix(),
	)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s: %w", ErrThreadTaken, sess.ThreadID, storeErr("upsert session", err))
		}
		return storeErr("upsert session", err)
	}
	return nil
}

// GetSession retrieves a session by chat user ID.
func (s *SQLStore) GetSession(ctx context.Context, userID string) (*domain.UserSession, error) {
	return s.getSession(ctx, s.db, userID)
}

// PutSession atomically replaces the whole session record.
func (s *SQLStore) PutSession(ctx context.Context, sess *domain.UserSession) error {
	return s.withRetry(ctx, "put session", func(ctx context.Context) error {
		return s.putSession(ctx, s.db, sess)
	})
}

// UpdateSession applies fn to the stored session inside a transaction.
func (s *SQLStore) UpdateSession(ctx context.Context, userID string, fn func(*domain.UserSession) error) (*domain.UserSession, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	var updated *domain.UserSession
	err := s.withRetry(ctx, "update session", func(ctx context.Context) error {
		updated = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return storeErr("begin transaction", err)
		}
		defer func() { _ = tx.Rollback() }()

		sess, err := s.getSession(ctx, tx, userID)
		if err != nil || sess == nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		if err := s.putSession(ctx, tx, sess); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return storeErr("commit session", err)
		}
		updated = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSession removes a session.
func (s *SQLStore) DeleteSession(ctx context.Context, userID string) error {
	return s.withRetry(ctx, "delete session", func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE user_id = ?`), userID); err != nil {
			return storeErr("delete session", err)
		}
		return nil
	})
}

// DeleteSessionForThread removes userID's session only while it is still bound
// to threadID. It reports whether a row was deleted.
func (s *SQLStore) DeleteSessionForThread(ctx context.Context, userID, threadID string) (bool, error) {
	if threadID == "" {
		return false, nil
	}
	var deleted bool
	err := s.withRetry(ctx, "delete session for thread", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			s.rebind(`DELETE FROM sessions WHERE user_id = ? AND thread_id = ?`), userID, threadID)
		if err != nil {
			return storeErr("delete session for thread", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storeErr("delete session for thread", err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// FindByMarketplaceUsername returns the most recently updated session bound to name.
func (s *SQLStore) FindByMarketplaceUsername(ctx context.Context, name string) (*domain.UserSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE LOWER(marketplace_username) = LOWER(?)
		ORDER BY updated_at DESC LIMIT 1`
	sess, err := scanSession(s.db.QueryRowContext(ctx, s.rebind(query), name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find session by username", err)
	}
	return sess, nil
}

// FindByThreadID returns the user ID owning threadID.
func (s *SQLStore) FindByThreadID(ctx context.Context, threadID string) (string, error) {
	if threadID == "" {
		return "", nil
	}
	var userID string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT user_id FROM sessions WHERE thread_id = ?`), threadID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storeErr("find session by thread", err)
	}
	return userID, nil
}

// ListAuthenticated returns every session holding credentials.
func (s *SQLStore) ListAuthenticated(ctx context.Context) ([]*domain.UserSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE credential_state = ? AND bearer_token IS NOT NULL
		ORDER BY user_id`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), string(domain.StateAuthenticated))
	if err != nil {
		return nil, storeErr("list authenticated sessions", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.UserSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storeErr("scan session row", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate sessions", err)
	}
	return sessions, nil
}

// SessionStats returns aggregate counters.
func (s *SQLStore) SessionStats(ctx context.Context) (SessionStats, error) {
	query := `SELECT COUNT(*), COUNT(thread_id),
		COALESCE(SUM(CASE WHEN credential_state = ? THEN 1 ELSE 0 END), 0)
		FROM sessions`
	var stats SessionStats
	err := s.db.QueryRowContext(ctx, s.rebind(query), string(domain.StateAuthenticated)).
		Scan(&stats.Sessions, &stats.Threads, &stats.Authenticated)
	if err != nil {
		return SessionStats{}, storeErr("session stats", err)
	}
	return stats, nil
}

// PutLink creates or overwrites the link for link.Hash.
func (s *SQLStore) PutLink(ctx context.Context, link *domain.NegotiationLink) error {
	if link.Hash == "" {
		return fmt.Errorf("negotiation link hash is empty")
	}
	now := s.now()
	query := `
	INSERT INTO negotiation_links (hash, buyer, seller, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(hash) DO UPDATE SET
		buyer = excluded.buyer,
		seller = excluded.seller,
		updated_at = excluded.updated_at`
	return s.withRetry(ctx, "put link", func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, s.rebind(query), link.Hash, link.Buyer, link.Seller, now.Unix(), now.Unix()); err != nil {
			return storeErr("upsert negotiation link", err)
		}
		return nil
	})
}

// GetLink retrieves a link by negotiation hash.
func (s *SQLStore) GetLink(ctx context.Context, hash string) (*domain.NegotiationLink, error) {
	var (
		link                 domain.NegotiationLink
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT hash, buyer, seller, created_at, updated_at FROM negotiation_links WHERE hash = ?`), hash,
	).Scan(&link.Hash, &link.Buyer, &link.Seller, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get negotiation link", err)
	}
	link.CreatedAt = time.Unix(createdAt, 0)
	link.UpdatedAt = time.Unix(updatedAt, 0)
	return &link, nil
}

// DeleteLink removes a link.
func (s *SQLStore) DeleteLink(ctx context.Context, hash string) error {
	return s.withRetry(ctx, "delete link", func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM negotiation_links WHERE hash = ?`), hash); err != nil {
			return storeErr("delete negotiation link", err)
		}
		return nil
	})
}

// DeleteLinksOlderThan removes links not updated since cutoff.
func (s *SQLStore) DeleteLinksOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.withRetry(ctx, "sweep links", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM negotiation_links WHERE updated_at < ?`), cutoff.Unix())
		if err != nil {
			return storeErr("sweep negotiation links", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}
