package surface

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/uex-relay/internal/identity"
	"github.com/coder/websocket"
)

// Frame types exchanged with thread clients.
const (
	FrameOpenThread = "open_thread"
	FrameMessage    = "message"
	FrameLeave      = "leave"
	FramePing       = "ping"

	FrameDelivery = "delivery"
	FrameNotice   = "notice"
	FrameThread   = "thread"
	FramePong     = "pong"
)

// Frame is the JSON envelope of every websocket message.
type Frame struct {
	Type     string   `json:"type"`
	ThreadID string   `json:"thread_id,omitempty"`
	Content  string   `json:"content,omitempty"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Message  *Message `json:"message,omitempty"`
	Rendered string   `json:"rendered,omitempty"`
}

// Inbound is a message a user typed into their thread.
type Inbound struct {
	ThreadID string
	Content  string
	// ReplyTo is the rendered text of the message being replied to, if any.
	ReplyTo string
}

// OpenResult describes the outcome of an open-thread command.
type OpenResult struct {
	ThreadID string
	Created  bool
	Notice   string
}

// Conversation handles the user-facing commands arriving on a thread.
type Conversation interface {
	CurrentThread(ctx context.Context, userID string) (string, error)
	OpenThread(ctx context.Context, userID string) (OpenResult, error)
	HandleMessage(ctx context.Context, userID string, in Inbound) (string, error)
	MemberLeft(ctx context.Context, threadID, userID string) error
}

// WebSocketHandler serves the thread client protocol.
type WebSocketHandler struct {
	hub           *Hub
	conv          Conversation
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, conv Conversation, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		conv:          conv,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "missing identity", http.StatusUnprocessableEntity)
		return
	}
	slog.Info("WebSocket connection request", "user_id", userID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &threadClient{h: h, ws: ws, userID: userID}
	defer c.detach()

	threadID, err := h.conv.CurrentThread(ctx, userID)
	if err != nil {
		slog.Warn("Failed to look up current thread", "user_id", userID, "error", err)
	}
	c.attach(ctx, threadID)

	c.readLoop(ctx)
	slog.Info("Thread client disconnected", "user_id", userID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// threadClient is one websocket connection and the thread it is attached to.
type threadClient struct {
	h        *WebSocketHandler
	ws       *websocket.Conn
	userID   string
	threadID string
}

func (c *threadClient) attach(ctx context.Context, threadID string) {
	if threadID != c.threadID {
		c.detach()
	}
	c.threadID = threadID
	if threadID != "" {
		for _, frame := range c.h.hub.Register(threadID, c.ws) {
			if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
				slog.Debug("Failed to replay backlog", "thread_id", threadID, "error", err)
				return
			}
		}
	}
	c.send(ctx, Frame{Type: FrameThread, ThreadID: threadID})
}

func (c *threadClient) detach() {
	if c.threadID != "" {
		c.h.hub.Unregister(c.threadID, c.ws)
		c.threadID = ""
	}
}

func (c *threadClient) notice(ctx context.Context, text string) {
	if text == "" {
		return
	}
	c.send(ctx, Frame{Type: FrameNotice, ThreadID: c.threadID, Content: text})
}

func (c *threadClient) send(ctx context.Context, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("Failed to encode frame", "type", f.Type, "error", err)
		return
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "type", f.Type, "error", err)
	}
}

func (c *threadClient) readLoop(ctx context.Context) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", c.userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", c.userID)
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.notice(ctx, "Unreadable message.")
			continue
		}
		c.dispatch(ctx, f)
	}
}

func (c *threadClient) dispatch(ctx context.Context, f Frame) {
	switch f.Type {
	case FrameOpenThread:
		res, err := c.h.conv.OpenThread(ctx, c.userID)
		if err != nil {
			slog.Error("Open thread failed", "user_id", c.userID, "error", err)
			c.notice(ctx, "Could not open a thread, please retry.")
			return
		}
		c.attach(ctx, res.ThreadID)
		c.notice(ctx, res.Notice)
	case FrameMessage:
		if c.threadID == "" {
			c.notice(ctx, "Open a thread first.")
			return
		}
		reply, err := c.h.conv.HandleMessage(ctx, c.userID, Inbound{
			ThreadID: c.threadID,
			Content:  f.Content,
			ReplyTo:  f.ReplyTo,
		})
		if err != nil {
			slog.Warn("Thread message failed", "user_id", c.userID, "error", err)
		}
		c.notice(ctx, reply)
	case FrameLeave:
		if c.threadID == "" {
			return
		}
		if err := c.h.conv.MemberLeft(ctx, c.threadID, c.userID); err != nil {
			slog.Warn("Member left handling failed", "user_id", c.userID, "error", err)
		}
		c.detach()
		c.send(ctx, Frame{Type: FrameThread})
	case FramePing:
		c.send(ctx, Frame{Type: FramePong})
	default:
		c.notice(ctx, "Unknown command.")
	}
}
