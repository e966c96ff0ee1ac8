package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/haeundev/storylab/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS stories (
		story_id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stories_owner ON stories(owner_id);

	CREATE TABLE IF NOT EXISTS scenes (
		scene_id INTEGER PRIMARY KEY AUTOINCREMENT,
		story_id INTEGER NOT NULL REFERENCES stories(story_id),
		text TEXT NOT NULL,
		image_url TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scenes_story ON scenes(story_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetStory retrieves a story by its ID.
func (s *SQLiteStore) GetStory(ctx context.Context, storyID int64) (*domain.Story, error) {
	query := `
		SELECT story_id, owner_id, title, created_at, updated_at
		FROM stories WHERE story_id = ?`

	row := s.db.QueryRowContext(ctx, query, storyID)

	var story domain.Story
	var createdAt, updatedAt int64

	err := row.Scan(&story.StoryID, &story.OwnerID, &story.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan story row: %w", err)
	}

	story.CreatedAt = time.Unix(createdAt, 0)
	story.UpdatedAt = time.Unix(updatedAt, 0)
	return &story, nil
}

// CreateStory creates a new story and returns its ID.
func (s *SQLiteStore) CreateStory(ctx context.Context, ownerID, title string) (int64, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stories (owner_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		ownerID, title, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert story: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("story insert id: %w", err)
	}
	return id, nil
}

// CreateScene persists an accepted scene and returns its ID.
func (s *SQLiteStore) CreateScene(ctx context.Context, storyID int64, text, imageURL string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scenes (story_id, text, image_url, created_at) VALUES (?, ?, ?, ?)`,
		storyID, text, imageURL, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert scene: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("scene insert id: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE stories SET updated_at = ? WHERE story_id = ?`,
		time.Now().Unix(), storyID,
	); err != nil {
		return 0, fmt.Errorf("touch story: %w", err)
	}
	return id, nil
}

// ListScenes returns a story's scenes in creation order.
func (s *SQLiteStore) ListScenes(ctx context.Context, storyID int64) ([]*domain.Scene, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scene_id, story_id, text, image_url, created_at
		 FROM scenes WHERE story_id = ? ORDER BY created_at, scene_id`,
		storyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []*domain.Scene
	for rows.Next() {
		var scene domain.Scene
		var createdAt int64
		if err := rows.Scan(&scene.SceneID, &scene.StoryID, &scene.Text, &scene.ImageURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan scene row: %w", err)
		}
		scene.CreatedAt = time.Unix(createdAt, 0)
		scenes = append(scenes, &scene)
	}
	return scenes, rows.Err()
}
