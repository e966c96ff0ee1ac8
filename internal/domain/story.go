// Package domain holds the core data types shared across packages.
package domain

import (
	"time"
)

// Story is an authored storybook a session may be attached to.
type Story struct {
	StoryID   int64     `json:"story_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scene is one accepted page of a story: prose plus its chosen illustration.
type Scene struct {
	SceneID   int64     `json:"scene_id"`
	StoryID   int64     `json:"story_id"`
	Text      string    `json:"text"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}
