package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	DefaultBacklogSize  = 50
	DefaultWriteTimeout = 5 * time.Second
)

// ThreadIndex maps a thread to the user that owns it. A thread exists for as
// long as some session references it.
type ThreadIndex interface {
	FindByThreadID(ctx context.Context, threadID string) (string, error)
}

// Hub manages private threads and the websocket clients attached to them.
// Messages for a thread with no attached client are kept in a bounded
// backlog and replayed on the next attach.
type Hub struct {
	index        ThreadIndex
	backlogSize  int
	writeTimeout time.Duration

	mu       sync.RWMutex
	conns    map[string]map[*websocket.Conn]struct{}
	backlogs map[string]*Backlog
}

// HubStats is a point-in-time view of hub activity.
type HubStats struct {
	AttachedThreads int `json:"attached_threads"`
	Connections     int `json:"connections"`
	Backlogged      int `json:"backlogged"`
}

// NewHub creates a hub backed by index.
func NewHub(index ThreadIndex, backlogSize int) *Hub {
	if backlogSize <= 0 {
		backlogSize = DefaultBacklogSize
	}
	return &Hub{
		index:        index,
		backlogSize:  backlogSize,
		writeTimeout: DefaultWriteTimeout,
		conns:        make(map[string]map[*websocket.Conn]struct{}),
		backlogs:     make(map[string]*Backlog),
	}
}

// CreatePrivateThread allocates a thread id. The thread becomes visible once
// a session referencing it is stored.
func (h *Hub) CreatePrivateThread(_ context.Context, userID string) (string, error) {
	threadID := "thr_" + uuid.NewString()
	slog.Info("Private thread created", "user_id", userID, "thread_id", threadID)
	return threadID, nil
}

// ThreadExists reports whether some session still references threadID.
func (h *Hub) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	if threadID == "" {
		return false, nil
	}
	owner, err := h.index.FindByThreadID(ctx, threadID)
	if err != nil {
		return false, fmt.Errorf("lookup thread %s: %w", threadID, err)
	}
	return owner != "", nil
}

// Deliver posts msg to every client attached to threadID, or backlogs it
// when none is attached.
func (h *Hub) Deliver(ctx context.Context, threadID string, msg Message) error {
	exists, err := h.ThreadExists(ctx, threadID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrThreadNotFound
	}

	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(Frame{
		Type:     FrameDelivery,
		ThreadID: threadID,
		Message:  &msg,
		Rendered: msg.Render(),
	})
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}

	conns := h.snapshotOrBacklog(threadID, data)
	if len(conns) == 0 {
		return nil
	}

	delivered := 0
	for _, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err := conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("Thread client write failed", "thread_id", threadID, "error", err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		// The thread may have been closed while the writes were failing.
		if exists, err := h.ThreadExists(ctx, threadID); err != nil || !exists {
			slog.Debug("Dropping delivery for closed thread", "thread_id", threadID)
			return nil
		}
		h.backlog(threadID).Push(data)
	}
	return nil
}

// snapshotOrBacklog returns the attached clients, or stores data in the
// backlog under the same lock Register drains it with.
func (h *Hub) snapshotOrBacklog(threadID string, data []byte) []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.conns[threadID]
	if len(set) == 0 {
		h.backlogLocked(threadID).Push(data)
		return nil
	}
	out := make([]*websocket.Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (h *Hub) backlog(threadID string) *Backlog {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backlogLocked(threadID)
}

func (h *Hub) backlogLocked(threadID string) *Backlog {
	b, ok := h.backlogs[threadID]
	if !ok {
		b = NewBacklog(h.backlogSize)
		h.backlogs[threadID] = b
	}
	return b
}

// Register attaches conn to threadID and returns the frames that were
// waiting for it, oldest first.
func (h *Hub) Register(threadID string, conn *websocket.Conn) [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[threadID]; !ok {
		h.conns[threadID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[threadID][conn] = struct{}{}
	slog.Info("Thread client attached", "thread_id", threadID)

	b, ok := h.backlogs[threadID]
	if !ok {
		return nil
	}
	delete(h.backlogs, threadID)
	return b.Drain()
}

// Unregister detaches conn from threadID.
func (h *Hub) Unregister(threadID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[threadID]
	if !ok {
		return
	}
	if _, exists := set[conn]; exists {
		delete(set, conn)
		slog.Info("Thread client detached", "thread_id", threadID)
	}
	if len(set) == 0 {
		delete(h.conns, threadID)
	}
}

// Attached returns the number of clients attached to threadID.
func (h *Hub) Attached(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[threadID])
}

// Pending returns the number of backlogged frames for threadID.
func (h *Hub) Pending(threadID string) int {
	h.mu.RLock()
	b, ok := h.backlogs[threadID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	return b.Len()
}

// CloseThread disconnects every client of threadID and drops its backlog.
func (h *Hub) CloseThread(threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[threadID] {
		_ = conn.Close(websocket.StatusNormalClosure, "thread deleted")
	}
	delete(h.conns, threadID)
	delete(h.backlogs, threadID)
	slog.Info("Thread closed", "thread_id", threadID)
}

// DiscardBacklog drops the frames queued for threadID.
func (h *Hub) DiscardBacklog(threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.backlogs, threadID)
}

// Stats returns current hub counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := HubStats{AttachedThreads: len(h.conns)}
	for _, set := range h.conns {
		st.Connections += len(set)
	}
	for _, b := range h.backlogs {
		st.Backlogged += b.Len()
	}
	return st
}
