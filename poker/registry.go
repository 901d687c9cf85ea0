package poker

import (
	"sync"
	"time"

	"github.com/mustlammas/planningpoker/estimation"
	"github.com/rs/zerolog/log"
)

// Registry owns the room table. Room creation, lookup and eviction are
// serialized by its lock; everything inside a room is serialized by the
// room's own lock, always taken after this one.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	maxRooms    int
	idleTimeout time.Duration
	catalog     *estimation.Catalog
	idGenerator UniqueIdGenerator
	now         func() time.Time
}

// Eviction is a room removed by the idle sweep together with the sessions
// that were attached to it at that moment.
type Eviction struct {
	RoomId   string
	Sessions []*Session
}

// NewRegistry builds an empty registry. maxRooms <= 0 disables the limit.
func NewRegistry(catalog *estimation.Catalog, idGenerator UniqueIdGenerator, maxRooms int, idleTimeout time.Duration) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		maxRooms:    maxRooms,
		idleTimeout: idleTimeout,
		catalog:     catalog,
		idGenerator: idGenerator,
		now:         time.Now,
	}
}

func (rg *Registry) CreateRoom(name string) (*Room, error) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	if rg.maxRooms > 0 && len(rg.rooms) >= rg.maxRooms {
		log.Warn().Int("rooms", len(rg.rooms)).Msg("room limit reached")
		return nil, ErrCapacityExceeded
	}

	id := rg.idGenerator.Generate()
	room := newRoom(id, name, rg.catalog, rg.now())
	rg.rooms[id] = room

	log.Info().Str("room", id).Int("rooms", len(rg.rooms)).Msg("room created")
	return room, nil
}

func (rg *Registry) GetRoom(id string) (*Room, error) {
	rg.mu.RLock()
	room, ok := rg.rooms[id]
	rg.mu.RUnlock()

	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (rg *Registry) Touch(id string) error {
	room, err := rg.GetRoom(id)
	if err != nil {
		return err
	}
	room.mu.Lock()
	room.touch(rg.now())
	room.mu.Unlock()
	return nil
}

// Rooms returns the live rooms in no particular order.
func (rg *Registry) Rooms() []*Room {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	rooms := make([]*Room, 0, len(rg.rooms))
	for _, r := range rg.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (rg *Registry) Count() int {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return len(rg.rooms)
}

// SweepIdleRooms evicts every room idle for longer than the idle timeout.
// Sessions get ROOM_REMOVED, their connections are closed and the room is
// detached from them before it leaves the table.
func (rg *Registry) SweepIdleRooms(now time.Time) []Eviction {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	var evicted []Eviction
	for id, room := range rg.rooms {
		room.mu.Lock()
		if now.Sub(room.lastInteraction) <= rg.idleTimeout {
			room.mu.Unlock()
			continue
		}

		room.publishRoomRemoved()
		evicted = append(evicted, Eviction{RoomId: id, Sessions: room.sessions})
		room.sessions = nil
		room.removed = true
		room.mu.Unlock()

		delete(rg.rooms, id)
		rg.idGenerator.Dispose(id)
		log.Info().Str("room", id).Msg("idle room evicted")
	}
	return evicted
}
