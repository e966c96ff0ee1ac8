package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/haeundev/storylab/internal/dialogue"
)

// Handler upgrades room connections and relays peer messages.
type Handler struct {
	manager       *Manager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a room WebSocket handler.
func NewHandler(manager *Manager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{manager: manager, allowedOrigin: allowedOrigin, isDev: isDev}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.isDev,
		OriginPatterns:     []string{h.allowedOrigin},
	})
	if err != nil {
		slog.Error("Room WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	ok, err := h.manager.Exists(ctx, code)
	if err != nil {
		slog.Error("Room lookup failed", "room", code, "error", err)
		conn.Close(websocket.StatusInternalError, "room lookup failed")
		return
	}
	if !ok {
		conn.Close(websocket.StatusPolicyViolation, "unknown room")
		return
	}

	h.manager.Join(code, conn)
	defer h.manager.Leave(code, conn)
	slog.Info("Peer joined room", "room", code)

	if notice, err := json.Marshal(dialogue.NewNoticeEvent("a new peer joined the room")); err == nil {
		if err := h.manager.Broadcast(ctx, code, notice); err != nil {
			slog.Warn("Room join notice failed", "room", code, "error", err)
		}
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("Room read ended", "room", code, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if err := h.manager.Broadcast(ctx, code, json.RawMessage(data)); err != nil {
			slog.Warn("Room broadcast failed", "room", code, "error", err)
		}
	}
}
