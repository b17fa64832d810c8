package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/dkeye/roomrelay/internal/domain"
)

const DefaultMaxMessages = 500

type memRoom struct {
	meta     domain.RoomMeta
	members  map[domain.Identity]struct{}
	messages []json.RawMessage
}

// Memory keeps everything in process. Each room keeps at most maxMessages
// messages, dropping the oldest.
type Memory struct {
	mu          sync.RWMutex
	rooms       map[domain.RoomCode]*memRoom
	maxMessages int
}

func NewMemory(maxMessages int) *Memory {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Memory{rooms: make(map[domain.RoomCode]*memRoom), maxMessages: maxMessages}
}

func (m *Memory) room(code domain.RoomCode) *memRoom {
	r, ok := m.rooms[code]
	if !ok {
		r = &memRoom{meta: domain.RoomMeta{Code: code}, members: make(map[domain.Identity]struct{})}
		m.rooms[code] = r
	}
	return r
}

func (m *Memory) SaveRoom(_ context.Context, meta domain.RoomMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.room(meta.Code).meta = meta
	return nil
}

func (m *Memory) Room(_ context.Context, code domain.RoomCode) (domain.RoomMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return domain.RoomMeta{}, ErrNotFound
	}
	return r.meta, nil
}

func (m *Memory) AddMember(_ context.Context, code domain.RoomCode, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.room(code).members[identity] = struct{}{}
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, code domain.RoomCode, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[code]; ok {
		delete(r.members, identity)
	}
	return nil
}

func (m *Memory) Members(_ context.Context, code domain.RoomCode) ([]domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return []domain.Identity{}, nil
	}
	out := make([]domain.Identity, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (m *Memory) AppendMessage(_ context.Context, code domain.RoomCode, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.room(code)
	r.messages = append(r.messages, slices.Clone(raw))
	if over := len(r.messages) - m.maxMessages; over > 0 {
		r.messages = slices.Delete(r.messages, 0, over)
	}
	return nil
}

func (m *Memory) Messages(_ context.Context, code domain.RoomCode, limit int) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok || limit <= 0 {
		return []json.RawMessage{}, nil
	}
	start := max(len(r.messages)-limit, 0)
	return slices.Clone(r.messages[start:]), nil
}

func (m *Memory) Close() error { return nil }
