// Package poller periodically fetches marketplace notifications for every
// authenticated session and forwards the new ones to the user's thread.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/shared"
	"github.com/ashureev/uex-relay/internal/store"
	"github.com/ashureev/uex-relay/internal/surface"
	"github.com/ashureev/uex-relay/internal/uex"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval   = 6 * time.Second
	DefaultWorkers    = 5
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
)

// Fetcher retrieves notifications for one user.
type Fetcher interface {
	FetchNotifications(ctx context.Context, creds uex.Credentials) ([]uex.Notification, error)
}

// UsernameResolver is asked to fill in missing marketplace usernames.
type UsernameResolver interface {
	ResolveLater(userID string)
}

// Config tunes the engine. Zero values fall back to the defaults.
type Config struct {
	Interval       time.Duration
	Workers        int
	Attempts       int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = uex.DefaultTimeout
	}
	return c
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Users     int           `json:"users"`
	Delivered int           `json:"delivered"`
	Failed    int           `json:"failed"`
	Skipped   bool          `json:"skipped"`
}

// Engine runs poll cycles.
type Engine struct {
	sessions  store.SessionStore
	remote    Fetcher
	messenger surface.Messenger
	links     surface.Links
	resolver  UsernameResolver
	cfg       Config
	now       func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.RWMutex
	last CycleReport
}

// NewEngine creates a poll engine. resolver may be nil.
func NewEngine(sessions store.SessionStore, remote Fetcher, messenger surface.Messenger, links surface.Links, resolver UsernameResolver, cfg Config) *Engine {
	return &Engine{
		sessions:  sessions,
		remote:    remote,
		messenger: messenger,
		links:     links,
		resolver:  resolver,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// Start runs a cycle every interval until ctx is done. A firing that finds
// the previous cycle still running is skipped.
func (e *Engine) Start(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer ticker.Stop()
		slog.Info("Poll engine started", "interval", e.cfg.Interval, "workers", e.cfg.Workers)

		for {
			select {
			case <-ticker.C:
				e.wg.Add(1)
				go func() {
					defer e.wg.Done()
					e.RunCycle(ctx)
				}()
			case <-ctx.Done():
				slog.Info("Poll engine shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Wait blocks until the scheduler and every in-flight cycle have returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// LastCycle returns the report of the most recent completed cycle.
func (e *Engine) LastCycle() CycleReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// RunCycle polls every authenticated session once.
func (e *Engine) RunCycle(ctx context.Context) (report CycleReport) {
	if !e.running.CompareAndSwap(false, true) {
		slog.Warn("Poll cycle skipped, previous cycle still running")
		return CycleReport{StartedAt: e.now(), Skipped: true}
	}
	defer e.running.Store(false)

	report = CycleReport{StartedAt: e.now()}
	defer func() {
		report.Duration = e.now().Sub(report.StartedAt)
		e.mu.Lock()
		e.last = report
		e.mu.Unlock()
	}()

	sessions, err := e.sessions.ListAuthenticated(ctx)
	if err != nil {
		slog.Error("Poll cycle failed to list sessions", "error", err)
		return report
	}
	report.Users = len(sessions)
	if len(sessions) == 0 {
		slog.Info("Poll cycle found no authenticated sessions")
		return report
	}
	slog.Info("Poll cycle started", "users", len(sessions))

	var (
		delivered atomic.Int64
		failed    atomic.Int64
		g         errgroup.Group
	)
	g.SetLimit(e.cfg.Workers)
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			n, err := e.pollUser(ctx, sess)
			delivered.Add(int64(n))
			if err != nil {
				failed.Add(1)
				slog.Warn("Polling user failed", "user_id", sess.UserID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Delivered = int(delivered.Load())
	report.Failed = int(failed.Load())
	slog.Info("Poll cycle completed",
		"users", report.Users,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"duration", e.now().Sub(report.StartedAt))
	return report
}

func (e *Engine) pollUser(ctx context.Context, sess *domain.UserSession) (delivered int, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while polling user", "user_id", sess.UserID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if !sess.HasThread() {
		slog.Debug("Session has no thread, skipping poll", "user_id", sess.UserID)
		return 0, nil
	}

	exists, err := e.messenger.ThreadExists(ctx, sess.ThreadID)
	if err != nil {
		return 0, fmt.Errorf("check thread: %w", err)
	}
	if !exists {
		return 0, e.dropSession(ctx, sess, "thread no longer exists")
	}

	notes, err := e.fetch(ctx, sess)
	if err != nil {
		return 0, err
	}

	if sess.MarketplaceUsername == "" && e.resolver != nil {
		e.resolver.ResolveLater(sess.UserID)
	}

	for _, n := range notes {
		id := string(n.ID)
		if id == "" || sess.HasSeen(id) {
			continue
		}

		fresh := false
		updated, err := e.sessions.UpdateSession(ctx, sess.UserID, func(s *domain.UserSession) error {
			if s.ThreadID != sess.ThreadID || s.BearerToken != sess.BearerToken {
				return errSessionReplaced
			}
			fresh = s.MarkSeen(id)
			if fresh {
				s.UpdatedAt = e.now().UTC()
			}
			return nil
		})
		if errors.Is(err, errSessionReplaced) {
			slog.Info("Session replaced during poll, stopping", "user_id", sess.UserID, "thread_id", sess.ThreadID)
			return delivered, nil
		}
		if err != nil {
			return delivered, fmt.Errorf("mark notification %s seen: %w", id, err)
		}
		if updated == nil {
			return delivered, nil
		}
		if !fresh {
			continue
		}

		pending := ParseNotification(n)
		msg := surface.Message{
			Kind:   surface.KindNotification,
			Title:  "New notification",
			Sender: pending.Sender,
			Body:   pending.Body,
		}
		if pending.RedirectPath != "" {
			msg.Link = e.links.Redirect(pending.RedirectPath)
		}

		if err := e.messenger.Deliver(ctx, updated.ThreadID, msg); err != nil {
			if errors.Is(err, surface.ErrThreadNotFound) {
				return delivered, e.dropSession(ctx, sess, "thread deleted during delivery")
			}
			return delivered, fmt.Errorf("deliver notification %s: %w", id, err)
		}
		delivered++
		slog.Info("Notification forwarded", "user_id", sess.UserID, "thread_id", sess.ThreadID, "remote_id", id, "sender", pending.Sender)
	}
	return delivered, nil
}

// fetch retries transport failures only. A non-success response ends the
// user's cycle immediately.
func (e *Engine) fetch(ctx context.Context, sess *domain.UserSession) ([]uex.Notification, error) {
	creds := uex.CredentialsOf(sess)
	policy := shared.RetryPolicy{Attempts: e.cfg.Attempts, Delay: e.cfg.RetryDelay}

	var notes []uex.Notification
	err := shared.Retry(ctx, policy, isTransport, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()

		var err error
		notes, err = e.remote.FetchNotifications(attemptCtx, creds)
		if err != nil && isTransport(err) {
			slog.Warn("Fetching notifications failed",
				"user_id", sess.UserID,
				"attempt", attempt,
				"max_attempts", e.cfg.Attempts,
				"error", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	return notes, nil
}

// errSessionReplaced aborts a user's cycle when the stored session no longer
// matches the snapshot the cycle started from.
var errSessionReplaced = errors.New("session replaced during poll")

func isTransport(err error) bool {
	return errors.Is(err, domain.ErrTransport)
}

func (e *Engine) dropSession(ctx context.Context, sess *domain.UserSession, reason string) error {
	deleted, err := e.sessions.DeleteSessionForThread(ctx, sess.UserID, sess.ThreadID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted {
		slog.Info("Session removed", "user_id", sess.UserID, "thread_id", sess.ThreadID, "reason", reason)
	}
	return nil
}
