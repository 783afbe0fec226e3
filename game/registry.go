package game

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/rwe-net/lobby-server/types"
)

const eventChannelSize = 256

// RegistryEvent is the closed set of room lifecycle events published to the
// directory service. All events travel on a single channel so observers see
// them in exactly the order the mutations were applied; an update and a
// delete of the same room can never overtake each other.
type RegistryEvent interface {
	registryEvent()
}

// GameUpdated carries a room's directory projection.
type GameUpdated struct {
	ID    int
	Entry types.GameEntry
}

// GameDeleted marks a room as gone.
type GameDeleted struct {
	ID int
}

func (GameUpdated) registryEvent() {}
func (GameDeleted) registryEvent() {}

// Registry owns room lifecycle: id allocation, admin key generation, and the
// directory event stream. The room map is the only structure shared between
// rooms, so all registry operations are serialized by its mutex; the state
// inside each Room belongs to that room's hub alone.
type Registry struct {
	mu     sync.Mutex
	nextID int
	rooms  map[int]*Room

	events    chan RegistryEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		rooms:  make(map[int]*Room),
		events: make(chan RegistryEvent, eventChannelSize),
		done:   make(chan struct{}),
	}
}

// CreateRoom allocates a new room with capacity empty slots and a fresh
// 128-bit admin key. The key is returned to the caller only and must be
// passed out-of-band to the room's creator, never broadcast.
func (g *Registry) CreateRoom(description string, capacity int) (*Room, string) {
	adminKey := newAdminKey()
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	room := NewRoom(id, description, capacity, adminKey)
	g.rooms[id] = room
	g.mu.Unlock()
	return room, adminKey
}

// DeleteRoom removes the room and emits a deleted event. Idempotent.
func (g *Registry) DeleteRoom(id int) bool {
	g.mu.Lock()
	_, ok := g.rooms[id]
	if ok {
		delete(g.rooms, id)
	}
	g.mu.Unlock()
	if ok {
		g.publish(GameDeleted{ID: id})
	}
	return ok
}

func (g *Registry) Room(id int) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[id]
	return room, ok
}

// Rooms returns a copy of the current id-to-room map.
func (g *Registry) Rooms() map[int]*Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[int]*Room, len(g.rooms))
	for id, room := range g.rooms {
		out[id] = room
	}
	return out
}

// NotifyUpdated publishes the room's current directory projection. Called by
// the room's hub after every room-affecting mutation.
func (g *Registry) NotifyUpdated(room *Room) {
	g.publish(GameUpdated{ID: room.ID, Entry: room.Entry()})
}

// Events is the lifecycle event stream consumed by the directory service.
func (g *Registry) Events() <-chan RegistryEvent {
	return g.events
}

// publish delivers the event unless the registry has been shut down, so room
// hubs still draining disconnects after the directory loop stopped consuming
// cannot block on a full buffer.
func (g *Registry) publish(ev RegistryEvent) {
	select {
	case g.events <- ev:
	case <-g.done:
	}
}

// Close stops event delivery and unblocks any publisher. Idempotent.
func (g *Registry) Close() {
	g.closeOnce.Do(func() { close(g.done) })
}

func newAdminKey() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
