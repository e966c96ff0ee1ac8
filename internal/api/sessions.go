package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/haeundev/storylab/internal/store"
)

// SessionHandler handles dialogue session endpoints.
type SessionHandler struct {
	*Handler
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)
		r.Post("/stories/{storyID}/sessions", h.CreateStorySession)
		r.Get("/stories/{storyID}/scenes", h.ListScenes)
	})
}

// CreateSession opens a fresh dialogue session not bound to any story.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.bearerUser(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "invalid credential")
		return
	}

	key, err := h.sessions.Create(r.Context(), userID, 0)
	if err != nil {
		slog.Error("Failed to create session", "user_id", userID, "error", err)
		Error(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	slog.Info("Session created", "user_id", userID, "session_key", key)
	JSON(w, http.StatusCreated, map[string]string{"session_key": key})
}

// CreateStorySession opens a dialogue session bound to an existing story,
// for quiz and extend modes.
func (h *SessionHandler) CreateStorySession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.bearerUser(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "invalid credential")
		return
	}

	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid story ID")
		return
	}

	story, err := h.repo.GetStory(r.Context(), storyID)
	if err != nil {
		if errors.Is(err, store.ErrStoryNotFound) {
			Error(w, http.StatusNotFound, "story not found")
			return
		}
		slog.Error("Failed to load story", "story_id", storyID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load story")
		return
	}
	if story.OwnerID != userID {
		Error(w, http.StatusForbidden, "story belongs to another user")
		return
	}

	key, err := h.sessions.Create(r.Context(), userID, storyID)
	if err != nil {
		slog.Error("Failed to create session", "user_id", userID, "story_id", storyID, "error", err)
		Error(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	slog.Info("Session created", "user_id", userID, "story_id", storyID, "session_key", key)
	JSON(w, http.StatusCreated, map[string]string{"session_key": key})
}

// ListScenes returns a story's accepted scenes in order.
func (h *SessionHandler) ListScenes(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.bearerUser(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "invalid credential")
		return
	}

	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid story ID")
		return
	}

	story, err := h.repo.GetStory(r.Context(), storyID)
	if err != nil {
		if errors.Is(err, store.ErrStoryNotFound) {
			Error(w, http.StatusNotFound, "story not found")
			return
		}
		slog.Error("Failed to load story", "story_id", storyID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load story")
		return
	}
	if story.OwnerID != userID {
		Error(w, http.StatusForbidden, "story belongs to another user")
		return
	}

	scenes, err := h.repo.ListScenes(r.Context(), storyID)
	if err != nil {
		slog.Error("Failed to list scenes", "story_id", storyID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list scenes")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"story_id": storyID,
		"title":    story.Title,
		"scenes":   scenes,
	})
}
