package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It backs tests and the
// no-Redis development mode; semantics match RedisStore, including the
// sliding expiration window.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*memSession
}

type memSession struct {
	meta      Meta
	entries   []string
	expiresAt time.Time // zero = persisted indefinitely
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*memSession),
	}
}

// SetClock overrides the time source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live returns the session if it has not expired, reaping it otherwise.
// Caller must hold s.mu.
func (s *MemoryStore) live(key string) *memSession {
	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}
	if !sess.expiresAt.IsZero() && !s.now().Before(sess.expiresAt) {
		delete(s.sessions, key)
		return nil
	}
	return sess
}

// Create writes draft metadata under the sliding TTL and returns the new key.
func (s *MemoryStore) Create(_ context.Context, ownerID string, storyID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NewKey(ownerID, storyID)
	s.sessions[key] = &memSession{
		meta:      Meta{OwnerID: ownerID, StoryID: storyID, Status: StatusDraft},
		expiresAt: s.now().Add(s.ttl),
	}
	return key, nil
}

// Append adds one entry and refreshes the expiration window.
func (s *MemoryStore) Append(_ context.Context, key string, role Role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(key)
	if sess == nil {
		return ErrSessionNotFound
	}
	sess.entries = append(sess.entries, encodeEntry(role, text))
	if !sess.expiresAt.IsZero() {
		sess.expiresAt = s.now().Add(s.ttl)
	}
	return nil
}

// History returns the ordered log without refreshing the expiration.
func (s *MemoryStore) History(_ context.Context, key string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(key)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	entries := make([]Entry, 0, len(sess.entries))
	for _, raw := range sess.entries {
		entries = append(entries, decodeEntry(raw))
	}
	return entries, nil
}

// MarkDone clears the expiration and flips the status to done.
func (s *MemoryStore) MarkDone(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(key)
	if sess == nil {
		return ErrSessionNotFound
	}
	sess.meta.Status = StatusDone
	sess.expiresAt = time.Time{}
	return nil
}

// Exists reports whether the session is still present.
func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key) != nil, nil
}

// Meta returns session metadata.
func (s *MemoryStore) Meta(_ context.Context, key string) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(key)
	if sess == nil {
		return Meta{}, ErrSessionNotFound
	}
	return sess.meta, nil
}
