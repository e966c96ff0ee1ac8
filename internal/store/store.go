// Package store provides persistence for stories and their accepted scenes.
//
// The dialogue core only needs a narrow slice of story storage: look up a
// story (quiz mode needs its title), create one when a draft session is
// accepted without a target story, and persist an accepted scene.
package store

import (
	"context"
	"errors"

	"github.com/haeundev/storylab/internal/domain"
)

// ErrStoryNotFound indicates the requested story does not exist.
var ErrStoryNotFound = errors.New("story not found")

// Repository defines the interface for story and scene persistence.
type Repository interface {
	// GetStory retrieves a story by its ID.
	GetStory(ctx context.Context, storyID int64) (*domain.Story, error)

	// CreateStory creates a new story and returns its ID.
	CreateStory(ctx context.Context, ownerID, title string) (int64, error)

	// CreateScene persists an accepted scene and returns its ID.
	CreateScene(ctx context.Context, storyID int64, text, imageURL string) (int64, error)

	// ListScenes returns a story's scenes in creation order.
	ListScenes(ctx context.Context, storyID int64) ([]*domain.Scene, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
