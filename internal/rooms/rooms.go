// Package rooms implements the shared-room relay: short-lived rooms that fan
// every message out to all connected peers, across server instances, via
// Redis pub/sub.
package rooms

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	roomsKey     = "rooms"
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// roomLifetime bounds how long an abandoned room code stays claimable.
	roomLifetime = 24 * time.Hour
)

// ErrRoomNotFound indicates the room code is unknown or expired.
var ErrRoomNotFound = errors.New("room not found")

// Manager owns room membership and cross-instance fan-out.
type Manager struct {
	client *redis.Client

	mu        sync.Mutex
	peers     map[string]map[*websocket.Conn]struct{}
	listeners map[string]context.CancelFunc
}

// NewManager creates a room manager on an existing Redis client.
func NewManager(client *redis.Client) *Manager {
	return &Manager{
		client:    client,
		peers:     make(map[string]map[*websocket.Conn]struct{}),
		listeners: make(map[string]context.CancelFunc),
	}
}

// CreateRoom generates a fresh room code and registers it.
func (m *Manager) CreateRoom(ctx context.Context) (string, error) {
	for {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		taken, err := m.client.SIsMember(ctx, roomsKey, code).Result()
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if taken {
			continue
		}

		pipe := m.client.TxPipeline()
		pipe.SAdd(ctx, roomsKey, code)
		pipe.Set(ctx, aliveKey(code), 1, roomLifetime)
		if _, err := pipe.Exec(ctx); err != nil {
			return "", fmt.Errorf("register room: %w", err)
		}
		return code, nil
	}
}

// Exists reports whether the room code is registered.
func (m *Manager) Exists(ctx context.Context, code string) (bool, error) {
	ok, err := m.client.SIsMember(ctx, roomsKey, code).Result()
	if err != nil {
		return false, fmt.Errorf("check room code: %w", err)
	}
	return ok, nil
}

// Broadcast publishes a message to every peer in the room, on every instance.
func (m *Manager) Broadcast(ctx context.Context, code string, message json.RawMessage) error {
	ok, err := m.Exists(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	return m.client.Publish(ctx, channel(code), string(message)).Err()
}

// Join registers a local peer and ensures this instance is subscribed to the
// room channel.
func (m *Manager) Join(code string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.peers[code]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		m.peers[code] = set
	}
	set[conn] = struct{}{}

	if _, ok := m.listeners[code]; !ok {
		ctx, cancel := context.WithCancel(context.Background())
		m.listeners[code] = cancel
		go m.listen(ctx, code)
	}
}

// Leave removes a local peer; the last one out stops the listener.
func (m *Manager) Leave(code string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if set, ok := m.peers[code]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(m.peers, code)
			if cancel, ok := m.listeners[code]; ok {
				cancel()
				delete(m.listeners, code)
			}
		}
	}
}

// listen fans messages from the room channel out to local peers. Peers whose
// socket errors are dropped.
func (m *Manager) listen(ctx context.Context, code string) {
	sub := m.client.Subscribe(ctx, channel(code))
	defer func() {
		if err := sub.Close(); err != nil {
			slog.Debug("Failed to close room subscription", "room", code, "error", err)
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m.fanOut(ctx, code, []byte(msg.Payload))
		}
	}
}

func (m *Manager) fanOut(ctx context.Context, code string, payload []byte) {
	// Non-JSON payloads get wrapped so peers always receive an object.
	if !json.Valid(payload) {
		wrapped, err := json.Marshal(map[string]string{"data": string(payload)})
		if err != nil {
			return
		}
		payload = wrapped
	}

	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.peers[code]))
	for conn := range m.peers[code] {
		conns = append(conns, conn)
	}
	m.mu.Unlock()

	var dead []*websocket.Conn
	for _, conn := range conns {
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		m.Leave(code, conn)
	}
}

// StartJanitor sweeps expired room codes out of the registry set. The alive
// marker key expires on its own; the set entry needs the sweep.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Room janitor started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				m.sweep(ctx)
			case <-ctx.Done():
				slog.Info("Room janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (m *Manager) sweep(ctx context.Context) {
	codes, err := m.client.SMembers(ctx, roomsKey).Result()
	if err != nil {
		slog.Error("Room janitor failed to list rooms", "error", err)
		return
	}

	var removed int
	for _, code := range codes {
		alive, err := m.client.Exists(ctx, aliveKey(code)).Result()
		if err != nil {
			slog.Error("Room janitor failed to check room", "room", code, "error", err)
			continue
		}
		if alive == 0 {
			if err := m.client.SRem(ctx, roomsKey, code).Err(); err != nil {
				slog.Warn("Room janitor failed to remove room", "room", code, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Room janitor removed expired rooms", "count", removed)
	}
}

func channel(code string) string  { return "room:" + code }
func aliveKey(code string) string { return "room:" + code + ":alive" }

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
