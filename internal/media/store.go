// Package media stores generated illustration bytes on local disk and maps
// them to client-servable URLs.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes media files under a base directory and returns URLs under a
// fixed prefix.
type Store struct {
	dir       string
	urlPrefix string
}

// NewStore creates the base directory if needed.
func NewStore(dir, urlPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &Store{dir: dir, urlPrefix: urlPrefix}, nil
}

// Save writes the bytes under a random name and returns the servable URL.
func (s *Store) Save(data []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".png"
	}
	name := fmt.Sprintf("%x", [16]byte(uuid.New())) + ext
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return s.urlPrefix + name, nil
}

// Dir returns the base directory, for mounting a static file server.
func (s *Store) Dir() string {
	return s.dir
}
