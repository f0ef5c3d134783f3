// Package relay drives one WebSocket connection per client: it parses
// inbound message frames, dispatches turns to the dialogue engine through
// the session store, and emits the connection/status/reply/error frames
// the chat widget understands.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/aisetech/chat-relay/backend/internal/config"
	"github.com/aisetech/chat-relay/backend/internal/model/chat"
	"github.com/aisetech/chat-relay/backend/internal/service/ai"
	"github.com/aisetech/chat-relay/backend/internal/service/session"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
)

// errContextLost marks a turn whose backend call failed and whose
// rebuild-and-retry also failed. The session survives; the user may retry.
var errContextLost = errors.New("conversation context lost")

// Handler upgrades connections and runs the per-connection receive loop.
type Handler struct {
	store     *session.Store
	engine    *ai.Service
	cfg       config.RelayConfig
	upgrader  websocket.Upgrader
	connected atomic.Int64
}

// New builds the relay handler. engine may be nil when the backend is not
// configured; turns then produce error frames instead of replies.
func New(store *session.Store, engine *ai.Service, cfg config.RelayConfig) *Handler {
	return &Handler{
		store:  store,
		engine: engine,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// Connected reports the number of live connections.
func (h *Handler) Connected() int {
	return int(h.connected.Load())
}

// userFrame is the inbound client frame.
type userFrame struct {
	Text      string `json:"text"`
	ClientID  string `json:"clientId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type connectionFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	ClientID string `json:"clientId"`
}

type statusFrame struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type replyFrame struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Timestamp      int64  `json:"timestamp"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[relay] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.connected.Add(1)
	defer h.connected.Add(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	go h.pingLoop(ctx, conn)

	// A reconnecting client may present its previous id on the query
	// string; anything else gets a fresh session.
	sess, created := h.store.GetOrCreate(ctx, r.URL.Query().Get("clientId"))
	log.Printf("[relay] connection open session=%s created=%t", sess.ID, created)

	h.writeFrame(conn, connectionFrame{
		Type:     "connection",
		Message:  "connected to the AISE Technology assistant",
		ClientID: sess.ID,
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[relay] read error session=%s: %v", sess.ID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var msg userFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeFrame(conn, errorFrame{Type: "error", Error: "invalid message format"})
			continue
		}

		text := strings.TrimSpace(msg.Text)
		if text == "" {
			h.writeFrame(conn, errorFrame{Type: "error", Error: "invalid message format"})
			continue
		}

		// Resolve the session through the store on every frame: the
		// widget repeats its stored id and may present a resumed one,
		// and the eviction sweep may have removed the session while the
		// connection idled on keepalives. A stale id transparently
		// yields a fresh session under the same id.
		targetID := sess.ID
		if msg.ClientID != "" {
			targetID = msg.ClientID
		}
		if next, created := h.store.GetOrCreate(ctx, targetID); next != sess {
			log.Printf("[relay] connection re-bound to session=%s created=%t", next.ID, created)
			sess = next
		}

		h.writeFrame(conn, statusFrame{Type: "status", Status: "thinking"})

		reply, err := h.processTurn(ctx, sess, text)
		if err != nil {
			h.writeFrame(conn, h.errorFrameFor(err))
			continue
		}

		h.writeFrame(conn, replyFrame{
			Type:           "reply",
			Message:        reply,
			ConversationID: sess.ID,
			Timestamp:      time.Now().UnixMilli(),
		})
	}
}

// processTurn runs one user turn inside the session's critical section:
// record the user turn, call the backend, and on a recoverable failure
// rebuild the conversation once and retry once.
func (h *Handler) processTurn(ctx context.Context, sess *session.Session, text string) (string, error) {
	sess.Lock()
	defer sess.Unlock()
	defer sess.Touch()

	sess.Append(chat.RoleUser, text)

	reply, err := h.sendWithTimeout(ctx, sess.Conversation(), text)
	if err == nil {
		sess.Append(chat.RoleAssistant, reply)
		return reply, nil
	}
	if !ai.Recoverable(err) {
		return "", err
	}

	log.Printf("[relay] turn failed session=%s, rebuilding conversation: %v", sess.ID, err)

	// Replay window for the rebuild: the newest recorded turns, minus the
	// user turn currently in flight (it is resubmitted by the retry).
	replay := sess.Recent(h.cfg.HistoryLimit + 1)
	if n := len(replay); n > 0 && replay[n-1].Role == chat.RoleUser && replay[n-1].Text == text {
		replay = replay[:n-1]
	}

	rebuilt := h.engine.RebuildConversation(replay)
	reply, retryErr := h.sendWithTimeout(ctx, rebuilt, text)
	if retryErr != nil {
		h.engine.Release(rebuilt)
		return "", fmt.Errorf("%w: %v", errContextLost, retryErr)
	}

	h.engine.Release(sess.Conversation())
	sess.SetConversation(rebuilt)
	sess.Append(chat.RoleAssistant, reply)
	return reply, nil
}

func (h *Handler) sendWithTimeout(ctx context.Context, conv *ai.Conversation, text string) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, h.cfg.TurnTimeout)
	defer cancel()
	return h.engine.SendTurn(tctx, conv, text)
}

func (h *Handler) errorFrameFor(err error) errorFrame {
	switch {
	case errors.Is(err, ai.ErrBackendUnavailable):
		return errorFrame{Type: "error", Error: "AI service is not configured", Details: err.Error()}
	case errors.Is(err, errContextLost):
		return errorFrame{Type: "error", Error: "conversation context was lost, please send your message again", Details: err.Error()}
	default:
		return errorFrame{Type: "error", Error: "failed to reach the AI service", Details: err.Error()}
	}
}

func (h *Handler) writeFrame(conn *websocket.Conn, frame any) {
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[relay] write failed: %v", err)
	}
}

// pingLoop keeps the connection alive; the pong handler extends the read
// deadline.
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// WriteControl is safe alongside the receive loop's writes.
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
