// Package session provides the ephemeral, TTL-governed conversation store.
//
// A session holds metadata (owner, optional story, lifecycle status) and an
// ordered append-only conversation log. While a session is in draft status
// both live under a sliding expiration window that is refreshed on every
// append; marking the session done clears the expiration and persists it
// indefinitely. An expired session is simply gone: every operation on it
// reports ErrSessionNotFound.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound indicates the session expired or never existed.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable indicates the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Role identifies the speaker of a conversation entry.
type Role string

const (
	RoleUser      Role = "U"
	RoleAssistant Role = "AI"
)

// Entry is one immutable turn of dialogue.
type Entry struct {
	Role Role
	Text string
}

// Meta holds the immutable identity of a session.
type Meta struct {
	OwnerID string `json:"owner_id"`
	StoryID int64  `json:"story_id"` // 0 = no story yet
	Status  string `json:"status"`
}

// Session lifecycle statuses.
const (
	StatusDraft = "draft"
	StatusDone  = "done"
)

// Store is the authoritative conversation store. No component may cache a
// copy of the history across calls longer than one dialogue step.
type Store interface {
	// Create generates a unique session key, writes draft metadata and an
	// empty history, both under the sliding TTL.
	Create(ctx context.Context, ownerID string, storyID int64) (string, error)

	// Append adds one entry and refreshes the TTL on metadata and history.
	// Appending to an expired or unknown session fails with ErrSessionNotFound.
	Append(ctx context.Context, key string, role Role, text string) error

	// History returns the full ordered log without touching the TTL.
	History(ctx context.Context, key string) ([]Entry, error)

	// MarkDone clears the TTL on metadata and history and flips the status
	// to done. Idempotent; fails with ErrSessionNotFound if metadata is gone.
	MarkDone(ctx context.Context, key string) error

	// Exists reports whether the session is still present.
	Exists(ctx context.Context, key string) (bool, error)

	// Meta returns the session's identity metadata.
	Meta(ctx context.Context, key string) (Meta, error)
}

// noStoryPart is the key segment used when a session has no target story yet.
const noStoryPart = "tmp"

// NewKey builds an opaque session key: owner, story part, random suffix.
func NewKey(ownerID string, storyID int64) string {
	part := noStoryPart
	if storyID > 0 {
		part = strconv.FormatInt(storyID, 10)
	}
	nonce := fmt.Sprintf("%x", [16]byte(uuid.New()))[:8]
	return ownerID + ":" + part + ":" + nonce
}

// ParseKey extracts the owner and story identifier embedded in a session key.
// A missing story is reported as storyID 0.
func ParseKey(key string) (ownerID string, storyID int64, err error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", 0, fmt.Errorf("malformed session key %q", key)
	}
	if parts[1] == noStoryPart {
		return parts[0], 0, nil
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("malformed story part in session key %q", key)
	}
	return parts[0], id, nil
}

func metaKey(key string) string { return "chat:" + key + ":meta" }
func histKey(key string) string { return "chat:" + key + ":hist" }

// encodeEntry and decodeEntry use the "U:text" / "AI:text" wire form shared
// by both store implementations so histories survive a backend swap.
func encodeEntry(role Role, text string) string {
	return string(role) + ":" + text
}

func decodeEntry(raw string) Entry {
	role, text, ok := strings.Cut(raw, ":")
	if !ok {
		return Entry{Role: RoleAssistant, Text: raw}
	}
	if Role(role) == RoleUser {
		return Entry{Role: RoleUser, Text: text}
	}
	return Entry{Role: RoleAssistant, Text: text}
}
