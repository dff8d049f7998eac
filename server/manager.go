package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

const maxRoomIDLen = 32

// ErrBadRoomID rejects room names outside [A-Za-z0-9_-]{1,32}.
var ErrBadRoomID = errors.New("invalid room id")

// Manager owns the rooms of one process.
type Manager struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	cfg         RoomConfig
	defaultRoom string
	closed      bool
}

// NewManager creates an empty manager. Rooms are created on first use.
func NewManager(defaultRoom string, cfg RoomConfig) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		cfg:         cfg,
		defaultRoom: defaultRoom,
	}
}

// GetOrCreateRoom returns the room, creating and starting it if needed.
// An empty id selects the default room.
func (m *Manager) GetOrCreateRoom(id string) (*Room, error) {
	if id == "" {
		id = m.defaultRoom
	}
	if !validRoomID(id) {
		return nil, fmt.Errorf("%w: %q", ErrBadRoomID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrRoomClosed
	}
	r, ok := m.rooms[id]
	if !ok {
		var err error
		if r, err = NewRoom(id, m.cfg); err != nil {
			return nil, err
		}
		m.rooms[id] = r
		r.StartTicker()
		Log.Infof("room created: %s", id)
	}
	return r, nil
}

// Room looks up an existing room without creating it.
func (m *Manager) Room(id string) (*Room, bool) {
	if id == "" {
		id = m.defaultRoom
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomIDs lists the live rooms, sorted.
func (m *Manager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close shuts down every room. Later GetOrCreateRoom calls fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	var err error
	for id, r := range m.rooms {
		err = multierr.Append(err, r.Close())
		delete(m.rooms, id)
	}
	return err
}

func validRoomID(id string) bool {
	if id == "" || len(id) > maxRoomIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
