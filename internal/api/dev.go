package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DevHandler exposes development-only helpers. It is never mounted in
// production.
type DevHandler struct {
	*Handler
}

// NewDevHandler creates a new dev handler.
func NewDevHandler(base *Handler) *DevHandler {
	return &DevHandler{Handler: base}
}

// RegisterRoutes registers dev routes.
func (h *DevHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/dev/token", h.MintToken)
}

// MintToken issues a signed credential for the given user ID so local
// frontends can connect without a real login flow.
func (h *DevHandler) MintToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, err := h.verifier.Mint(req.UserID)
	if err != nil {
		slog.Error("Failed to mint dev token", "error", err)
		Error(w, http.StatusInternalServerError, "failed to mint token")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"token": token})
}
