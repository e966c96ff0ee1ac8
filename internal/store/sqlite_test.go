package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestSQLiteStore_StoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	id, err := repo.CreateStory(ctx, "alice", "The Green Dragon")
	if err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	if id == 0 {
		t.Fatal("CreateStory returned zero ID")
	}

	story, err := repo.GetStory(ctx, id)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if story.OwnerID != "alice" || story.Title != "The Green Dragon" {
		t.Errorf("story = %+v", story)
	}
	if story.CreatedAt.IsZero() || story.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestSQLiteStore_GetStoryNotFound(t *testing.T) {
	repo := newTestStore(t)

	if _, err := repo.GetStory(context.Background(), 999); !errors.Is(err, ErrStoryNotFound) {
		t.Errorf("GetStory(999) = %v, want ErrStoryNotFound", err)
	}
}

func TestSQLiteStore_ScenesInOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	storyID, err := repo.CreateStory(ctx, "alice", "The Green Dragon")
	if err != nil {
		t.Fatalf("CreateStory: %v", err)
	}

	texts := []string{"Scene one.", "Scene two.", "Scene three."}
	for i, text := range texts {
		if _, err := repo.CreateScene(ctx, storyID, text, "/static/illustrations/"+string(rune('a'+i))+".png"); err != nil {
			t.Fatalf("CreateScene: %v", err)
		}
	}

	scenes, err := repo.ListScenes(ctx, storyID)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(scenes) != len(texts) {
		t.Fatalf("ListScenes length = %d, want %d", len(scenes), len(texts))
	}
	for i, scene := range scenes {
		if scene.Text != texts[i] {
			t.Errorf("scenes[%d].Text = %q, want %q", i, scene.Text, texts[i])
		}
		if scene.StoryID != storyID {
			t.Errorf("scenes[%d].StoryID = %d, want %d", i, scene.StoryID, storyID)
		}
	}
}

func TestSQLiteStore_ListScenesEmptyStory(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	storyID, err := repo.CreateStory(ctx, "alice", "Empty")
	if err != nil {
		t.Fatalf("CreateStory: %v", err)
	}

	scenes, err := repo.ListScenes(ctx, storyID)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(scenes) != 0 {
		t.Errorf("ListScenes = %v, want empty", scenes)
	}
}

func TestSQLiteStore_Ping(t *testing.T) {
	repo := newTestStore(t)

	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
