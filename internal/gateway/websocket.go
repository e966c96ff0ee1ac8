// Package gateway terminates dialogue WebSocket connections: it
// authenticates the handshake, enforces close semantics, and bridges the
// socket to the dialogue state machine.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/haeundev/storylab/internal/ai"
	"github.com/haeundev/storylab/internal/auth"
	"github.com/haeundev/storylab/internal/dialogue"
	"github.com/haeundev/storylab/internal/metrics"
	"github.com/haeundev/storylab/internal/session"
)

// subprotocolTag is the fixed first part of the two-part handshake token;
// the second part is the credential.
const subprotocolTag = "jwt"

// MachineDeps carries the collaborators handed to each dialogue machine.
type MachineDeps struct {
	Store        session.Store
	Chat         dialogue.Completion
	Images       dialogue.ImageBatcher
	Scenes       dialogue.ScenePersister
	Refiner      ai.Refiner
	ImageRetries int
	BatchTimeout time.Duration
}

// Handler serves the per-session dialogue WebSocket endpoint.
type Handler struct {
	verifier      *auth.Verifier
	registry      *Registry
	deps          MachineDeps
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a dialogue WebSocket handler.
func NewHandler(verifier *auth.Verifier, registry *Registry, deps MachineDeps, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		verifier:      verifier,
		registry:      registry,
		deps:          deps,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP upgrades the connection and runs one dialogue to completion.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sessionKey")
	slog.Info("Dialogue connection request", "session_key", key, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	protocols := parseSubprotocols(r.Header.Get("Sec-WebSocket-Protocol"))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{subprotocolTag},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_key", key)
		return
	}
	defer func() {
		// No-op if the handler already closed with a specific code.
		_ = ws.Close(websocket.StatusNormalClosure, "session ended")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if len(protocols) != 2 || protocols[0] != subprotocolTag {
		closeWith(ws, websocket.StatusPolicyViolation, "bad subprotocol")
		return
	}

	subject, err := h.verifier.Verify(protocols[1])
	if err != nil {
		slog.Warn("Credential rejected", "session_key", key, "error", err)
		closeWith(ws, websocket.StatusPolicyViolation, "credential rejected")
		return
	}

	meta, err := h.deps.Store.Meta(ctx, key)
	if errors.Is(err, session.ErrSessionNotFound) {
		closeWith(ws, websocket.StatusPolicyViolation, "unknown session")
		return
	}
	if err != nil {
		slog.Error("Session metadata lookup failed", "session_key", key, "error", err)
		closeWith(ws, websocket.StatusInternalError, "store unavailable")
		return
	}
	if meta.OwnerID != subject {
		slog.Warn("Ownership mismatch", "session_key", key, "subject", subject)
		closeWith(ws, websocket.StatusPolicyViolation, "not session owner")
		return
	}

	// Metadata may be served from cache; existence is always authoritative.
	exists, err := h.deps.Store.Exists(ctx, key)
	if err != nil {
		closeWith(ws, websocket.StatusInternalError, "store unavailable")
		return
	}
	if !exists {
		closeWith(ws, websocket.StatusPolicyViolation, "session expired")
		return
	}

	if !h.registry.Register(key, ws) {
		slog.Warn("Session already has a live connection", "session_key", key)
		closeWith(ws, websocket.StatusPolicyViolation, "session already connected")
		return
	}
	defer h.registry.Unregister(key, ws)

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	conn := &wsConn{ws: ws}

	first, err := conn.Receive(ctx)
	if err != nil {
		closeWith(ws, websocket.StatusUnsupportedData, "bad opening message")
		return
	}
	switch first.Type {
	case dialogue.MsgStart, dialogue.MsgQuiz, dialogue.MsgExtend:
	default:
		closeWith(ws, websocket.StatusUnsupportedData, "opening message must declare a mode")
		return
	}
	metrics.SessionsStarted.WithLabelValues(first.Type).Inc()

	machine := dialogue.New(dialogue.Config{
		Key:          key,
		OwnerID:      meta.OwnerID,
		StoryID:      meta.StoryID,
		Store:        h.deps.Store,
		Chat:         h.deps.Chat,
		Images:       h.deps.Images,
		Scenes:       h.deps.Scenes,
		Refiner:      h.deps.Refiner,
		Conn:         conn,
		ImageRetries: h.deps.ImageRetries,
		BatchTimeout: h.deps.BatchTimeout,
	})
	defer machine.Close()

	err = machine.Run(ctx, first.Type, first.TextString())
	h.closeFor(ws, key, err)
}

// closeFor maps a machine outcome to the wire close code.
func (h *Handler) closeFor(ws *websocket.Conn, key string, err error) {
	switch {
	case err == nil:
		slog.Info("Dialogue finished", "session_key", key)
		closeWith(ws, websocket.StatusNormalClosure, "finished")
	case errors.Is(err, dialogue.ErrProtocolViolation):
		slog.Warn("Protocol violation", "session_key", key, "error", err)
		closeWith(ws, websocket.StatusUnsupportedData, "protocol violation")
	case errors.Is(err, dialogue.ErrQuizNeedsStory):
		closeWith(ws, websocket.StatusUnsupportedData, "mode requires a story")
	case errors.Is(err, session.ErrSessionNotFound):
		closeWith(ws, websocket.StatusPolicyViolation, "session expired")
	case websocket.CloseStatus(err) != -1, errors.Is(err, context.Canceled):
		slog.Debug("Client disconnected", "session_key", key)
	default:
		slog.Error("Dialogue failed", "session_key", key, "error", err)
		closeWith(ws, websocket.StatusInternalError, "internal error")
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func closeWith(ws *websocket.Conn, code websocket.StatusCode, reason string) {
	if err := ws.Close(code, reason); err != nil {
		slog.Debug("Failed to close websocket", "error", err)
	}
}

// parseSubprotocols splits the Sec-WebSocket-Protocol header value.
func parseSubprotocols(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// wsConn adapts a websocket connection to the machine's Conn interface.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Send(ctx context.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.ws.Write(ctx, websocket.MessageText, payload)
}

func (c *wsConn) Receive(ctx context.Context) (dialogue.ClientMessage, error) {
	_, payload, err := c.ws.Read(ctx)
	if err != nil {
		return dialogue.ClientMessage{}, err
	}
	var msg dialogue.ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return dialogue.ClientMessage{}, fmt.Errorf("%w: malformed message: %v", dialogue.ErrProtocolViolation, err)
	}
	return msg, nil
}
