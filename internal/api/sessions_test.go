package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/haeundev/storylab/internal/auth"
	"github.com/haeundev/storylab/internal/domain"
	"github.com/haeundev/storylab/internal/session"
	"github.com/haeundev/storylab/internal/store"
)

type fakeRepo struct {
	stories map[int64]*domain.Story
	scenes  map[int64][]*domain.Scene
}

func (f *fakeRepo) GetStory(_ context.Context, storyID int64) (*domain.Story, error) {
	story, ok := f.stories[storyID]
	if !ok {
		return nil, store.ErrStoryNotFound
	}
	return story, nil
}

func (f *fakeRepo) CreateStory(_ context.Context, ownerID, title string) (int64, error) {
	id := int64(len(f.stories) + 1)
	f.stories[id] = &domain.Story{StoryID: id, OwnerID: ownerID, Title: title}
	return id, nil
}

func (f *fakeRepo) CreateScene(_ context.Context, storyID int64, text, imageURL string) (int64, error) {
	f.scenes[storyID] = append(f.scenes[storyID], &domain.Scene{StoryID: storyID, Text: text, ImageURL: imageURL})
	return int64(len(f.scenes[storyID])), nil
}

func (f *fakeRepo) ListScenes(_ context.Context, storyID int64) ([]*domain.Scene, error) {
	return f.scenes[storyID], nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

type apiFixture struct {
	router   chi.Router
	verifier *auth.Verifier
	sessions session.Store
	repo     *fakeRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := &fakeRepo{
		stories: map[int64]*domain.Story{
			1: {StoryID: 1, OwnerID: "alice", Title: "Dragon Tales"},
		},
		scenes: map[int64][]*domain.Scene{},
	}
	sessions := session.NewMemoryStore(time.Minute)
	verifier := auth.NewVerifier("test-secret", time.Hour)

	base := NewHandler(repo, sessions, verifier)
	router := chi.NewRouter()
	NewSessionHandler(base).RegisterRoutes(router)
	NewDevHandler(base).RegisterRoutes(router)

	return &apiFixture{router: router, verifier: verifier, sessions: sessions, repo: repo}
}

func (fx *apiFixture) request(t *testing.T, method, path, subject string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, path, nil)
	if subject != "" {
		token, err := fx.verifier.Mint(subject)
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, r)
	return w
}

func TestCreateSession(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.request(t, http.MethodPost, "/api/v1/sessions", "alice")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	key := body["session_key"]
	if key == "" {
		t.Fatal("response carries no session_key")
	}

	meta, err := fx.sessions.Meta(context.Background(), key)
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if meta.OwnerID != "alice" || meta.StoryID != 0 {
		t.Errorf("meta = %+v, want alice with no story", meta)
	}
}

func TestCreateSession_Unauthorized(t *testing.T) {
	fx := newAPIFixture(t)

	if w := fx.request(t, http.MethodPost, "/api/v1/sessions", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCreateStorySession(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.request(t, http.MethodPost, "/api/v1/stories/1/sessions", "alice")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta, err := fx.sessions.Meta(context.Background(), body["session_key"])
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if meta.StoryID != 1 {
		t.Errorf("StoryID = %d, want 1", meta.StoryID)
	}
}

func TestCreateStorySession_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		subject string
		want    int
	}{
		{"unknown story", "/api/v1/stories/99/sessions", "alice", http.StatusNotFound},
		{"foreign story", "/api/v1/stories/1/sessions", "mallory", http.StatusForbidden},
		{"bad story id", "/api/v1/stories/abc/sessions", "alice", http.StatusBadRequest},
		{"no credential", "/api/v1/stories/1/sessions", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAPIFixture(t)
			if w := fx.request(t, http.MethodPost, tt.path, tt.subject); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestListScenes(t *testing.T) {
	fx := newAPIFixture(t)
	fx.repo.scenes[1] = []*domain.Scene{
		{StoryID: 1, Text: "Scene one.", ImageURL: "/static/illustrations/a.png"},
	}

	w := fx.request(t, http.MethodGet, "/api/v1/stories/1/scenes", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var body struct {
		Title  string          `json:"title"`
		Scenes []*domain.Scene `json:"scenes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Title != "Dragon Tales" {
		t.Errorf("title = %q", body.Title)
	}
	if len(body.Scenes) != 1 || body.Scenes[0].Text != "Scene one." {
		t.Errorf("scenes = %+v", body.Scenes)
	}
}

func TestDevToken(t *testing.T) {
	fx := newAPIFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/dev/token", jsonBody(`{"user_id":"alice"}`))
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	subject, err := fx.verifier.Verify(body["token"])
	if err != nil {
		t.Fatalf("Verify minted token: %v", err)
	}
	if subject != "alice" {
		t.Errorf("subject = %q, want alice", subject)
	}
}

func TestDevToken_MissingUserID(t *testing.T) {
	fx := newAPIFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/dev/token", jsonBody(`{}`))
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
