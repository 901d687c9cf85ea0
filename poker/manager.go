package poker

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mustlammas/planningpoker/estimation"
	"github.com/rs/zerolog/log"
)

const maxUsernameLength = 32

// Manager binds connections to rooms and applies in-room events. It keeps
// an index of live sessions by id; the per-room session list lives on the
// Room and is only mutated here, under the room's lock.
//
// Lock order is registry, then room, then the session index. The index lock
// is never held while acquiring a room lock.
type Manager struct {
	registry *Registry

	mu       sync.RWMutex
	sessions map[string]*Session

	staleAfter time.Duration
	deadAfter  time.Duration

	heartbeatMu sync.Mutex
	token       uint64
	issued      map[uint64]time.Time
}

func NewManager(registry *Registry, staleAfter, deadAfter time.Duration) *Manager {
	return &Manager{
		registry:   registry,
		sessions:   make(map[string]*Session),
		staleAfter: staleAfter,
		deadAfter:  deadAfter,
		issued:     make(map[uint64]time.Time),
	}
}

func (m *Manager) Registry() *Registry { return m.registry }

// Join attaches conn to the room under username. The uniqueness check and
// the insert happen under the room lock, so of two concurrent joins with the
// same name exactly one succeeds. Failures are reported to conn as ERROR.
func (m *Manager) Join(roomId, username string, conn Connection) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		publishError(conn, ErrInvalidUsername)
		return nil, ErrInvalidUsername
	}

	room, err := m.registry.GetRoom(roomId)
	if err != nil {
		publishError(conn, ErrRoomNotFound)
		return nil, err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.removed {
		publishError(conn, ErrRoomNotFound)
		return nil, ErrRoomNotFound
	}
	if room.usernameTaken(username) {
		publishError(conn, ErrUsernameTaken)
		return nil, ErrUsernameTaken
	}

	now := m.registry.now()
	s := &Session{
		id:       uuid.NewString(),
		username: username,
		roomId:   room.id,
		conn:     conn,
		healthy:  true,
		lastAck:  now,
	}
	room.sessions = append(room.sessions, s)
	room.touch(now)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	s.send(encode(MsgUsernameOk, UsernameOkPayload{Username: username}))
	room.publishUsers()
	room.publishTemplate()

	log.Info().Str("room", room.id).Str("session", s.id).Str("username", username).Msg("session joined")
	return s, nil
}

// lockSession resolves a session and locks its room. The caller must unlock
// the returned room.
func (m *Manager) lockSession(sessionId string) (*Session, *Room, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionId]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	room, err := m.registry.GetRoom(s.roomId)
	if err != nil {
		return nil, nil, ErrSessionNotFound
	}

	room.mu.Lock()
	if !room.attached(s) {
		room.mu.Unlock()
		return nil, nil, ErrSessionNotFound
	}
	return s, room, nil
}

func (m *Manager) lockRoom(roomId string) (*Room, error) {
	room, err := m.registry.GetRoom(roomId)
	if err != nil {
		return nil, err
	}
	room.mu.Lock()
	if room.removed {
		room.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Vote records text as the session's vote without checking it against the
// template. An empty text withdraws the vote.
func (m *Manager) Vote(sessionId, text string) error {
	s, room, err := m.lockSession(sessionId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if s.observer {
		return ErrObserverVote
	}
	s.vote = text
	room.touch(m.registry.now())
	room.publishUsers()
	return nil
}

func (m *Manager) ResetVote(roomId string) error {
	room, err := m.lockRoom(roomId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	room.resetVotes(m.registry.now())
	return nil
}

// ResetVoteBy resets the votes of the room sessionId is attached to. A
// session that already left gets ErrSessionNotFound and changes nothing.
func (m *Manager) ResetVoteBy(sessionId string) error {
	_, room, err := m.lockSession(sessionId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	room.resetVotes(m.registry.now())
	return nil
}

func (m *Manager) BecomeObserver(sessionId string) error {
	return m.setObserver(sessionId, true)
}

func (m *Manager) BecomeParticipant(sessionId string) error {
	return m.setObserver(sessionId, false)
}

func (m *Manager) setObserver(sessionId string, observer bool) error {
	s, room, err := m.lockSession(sessionId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	s.observer = observer
	if observer {
		s.vote = ""
	}
	room.touch(m.registry.now())
	room.publishUsers()
	return nil
}

// RevealVotes gives every participant without a vote the placeholder so
// all votes show at once.
func (m *Manager) RevealVotes(roomId string) error {
	room, err := m.lockRoom(roomId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	m.reveal(room)
	return nil
}

func (m *Manager) RevealVotesBy(sessionId string) error {
	_, room, err := m.lockSession(sessionId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	m.reveal(room)
	return nil
}

func (m *Manager) reveal(room *Room) {
	for _, s := range room.sessions {
		if !s.observer && s.vote == "" {
			s.vote = estimation.Placeholder
		}
	}
	room.touch(m.registry.now())
	room.publishUsers()
}

// Disconnect forgets the session and tells the rest of its room. It is a
// no-op for the room when the room was evicted in the meantime.
func (m *Manager) Disconnect(sessionId string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionId]
	delete(m.sessions, sessionId)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.conn.Close("")

	room, err := m.registry.GetRoom(s.roomId)
	if err != nil {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.detach(s) && !room.removed {
		room.publishUsers()
	}

	log.Info().Str("room", s.roomId).Str("session", s.id).Str("username", s.username).Msg("session left")
	return nil
}

// UpdateTemplate swaps the room's scale. A template named Custom is also
// kept in the room's catalog. In-flight votes are cleared since they were
// cast against the previous scale.
func (m *Manager) UpdateTemplate(roomId string, t estimation.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t = t.Symmetrize()

	room, err := m.lockRoom(roomId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	m.applyTemplate(room, t)
	return nil
}

func (m *Manager) UpdateTemplateBy(sessionId string, t estimation.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t = t.Symmetrize()

	_, room, err := m.lockSession(sessionId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	m.applyTemplate(room, t)
	return nil
}

func (m *Manager) applyTemplate(room *Room, t estimation.Template) {
	room.storeTemplate(t)
	room.publishTemplate()
	room.resetVotes(m.registry.now())

	log.Info().Str("room", room.id).Str("template", t.Name).Msg("template updated")
}

// SweepIdleRooms evicts idle rooms and drops their sessions from the index.
// It returns the number of rooms evicted.
func (m *Manager) SweepIdleRooms(now time.Time) int {
	evicted := m.registry.SweepIdleRooms(now)
	if len(evicted) == 0 {
		return 0
	}

	m.mu.Lock()
	for _, e := range evicted {
		for _, s := range e.Sessions {
			delete(m.sessions, s.id)
		}
	}
	m.mu.Unlock()
	return len(evicted)
}

// SessionCount is the number of live sessions across all rooms.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
