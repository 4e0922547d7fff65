package room

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/BioHazard786/Roomdrop/internal/peer"
)

// Manager is the registry of open rooms. One of them is the active room the
// UI shows.
type Manager struct {
	base Config

	mu     sync.Mutex
	rooms  map[string]*Controller
	active string
}

// NewManager opens rooms from base, filling in ID and Role per room.
func NewManager(base Config) *Manager {
	return &Manager{base: base, rooms: make(map[string]*Controller)}
}

// CreateOrJoin opens the room or, if it is already open, makes it active
// and returns the existing controller.
func (m *Manager) CreateOrJoin(ctx context.Context, id string, role peer.Role) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.rooms[id]; ok {
		m.active = id
		return c, nil
	}

	cfg := m.base
	cfg.ID = id
	cfg.Role = role
	c, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m.rooms[id] = c
	m.active = id
	return c, nil
}

func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rooms[id]
	return c, ok
}

// Active returns the most recently created or joined room still open.
func (m *Manager) Active() (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rooms[m.active]
	return c, ok
}

// Rooms lists open room ids in sorted order.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.rooms))
}

// Close shuts one room down and forgets it.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.rooms[id]
	delete(m.rooms, id)
	if m.active == id {
		m.active = ""
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return c.Close(ctx)
}

// CloseAll shuts every room down.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, id := range m.Rooms() {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
