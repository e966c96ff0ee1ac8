// Package api provides HTTP handlers for the StoryLab API.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/haeundev/storylab/internal/auth"
	"github.com/haeundev/storylab/internal/session"
	"github.com/haeundev/storylab/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	sessions session.Store
	verifier *auth.Verifier
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, sessions session.Store, verifier *auth.Verifier) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		verifier: verifier,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// bearerUser extracts and verifies the Bearer token, returning the user ID.
func (h *Handler) bearerUser(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		return "", false
	}
	return userID, true
}
