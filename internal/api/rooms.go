package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/haeundev/storylab/internal/rooms"
)

// RoomHandler handles shared-room endpoints.
type RoomHandler struct {
	*Handler
	manager *rooms.Manager
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(base *Handler, manager *rooms.Manager) *RoomHandler {
	return &RoomHandler{Handler: base, manager: manager}
}

// RegisterRoutes registers room routes.
func (h *RoomHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/rooms", h.CreateRoom)
}

// CreateRoom registers a fresh room and returns its join code.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.bearerUser(r); !ok {
		Error(w, http.StatusUnauthorized, "invalid credential")
		return
	}

	code, err := h.manager.CreateRoom(r.Context())
	if err != nil {
		slog.Error("Failed to create room", "error", err)
		Error(w, http.StatusServiceUnavailable, "room registry unavailable")
		return
	}

	slog.Info("Room created", "room", code)
	JSON(w, http.StatusCreated, map[string]string{"room_code": code})
}
