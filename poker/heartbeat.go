package poker

import (
	"time"

	"github.com/mustlammas/planningpoker/estimation"
	"github.com/rs/zerolog/log"
)

// Heartbeat issues a fresh token to every room and grades each session by
// the age of its last acknowledged token. Sessions past staleAfter become
// unhealthy and, when they still owe a vote, get the placeholder. Sessions
// past deadAfter are removed. Heartbeats never count as room activity.
func (m *Manager) Heartbeat(now time.Time) uint64 {
	m.heartbeatMu.Lock()
	m.token++
	token := m.token
	m.issued[token] = now
	for t, at := range m.issued {
		if now.Sub(at) > m.deadAfter {
			delete(m.issued, t)
		}
	}
	m.heartbeatMu.Unlock()

	for _, room := range m.registry.Rooms() {
		dead := m.checkRoom(room, now, token)
		if len(dead) == 0 {
			continue
		}
		m.mu.Lock()
		for _, s := range dead {
			delete(m.sessions, s.id)
		}
		m.mu.Unlock()
	}
	return token
}

func (m *Manager) checkRoom(room *Room, now time.Time, token uint64) []*Session {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.removed {
		return nil
	}

	var dead []*Session
	changed := false
	for _, s := range append([]*Session(nil), room.sessions...) {
		silent := now.Sub(s.lastAck)
		switch {
		case silent > m.deadAfter:
			room.detach(s)
			s.conn.Close(closeConnectionLost)
			dead = append(dead, s)
			changed = true
			log.Info().Str("room", room.id).Str("session", s.id).Dur("silent", silent).Msg("session timed out")
		case silent > m.staleAfter:
			if s.healthy {
				s.healthy = false
				changed = true
			}
			if !s.observer && s.vote == "" {
				s.vote = estimation.Placeholder
				changed = true
			}
		}
	}

	room.publishHeartbeat(token)
	if changed {
		room.publishUsers()
	}
	return dead
}

// Ack records that the session saw token. Unknown or expired tokens are
// ignored, as are tokens older than the one already acknowledged.
func (m *Manager) Ack(sessionId string, token uint64) error {
	m.heartbeatMu.Lock()
	issuedAt, ok := m.issued[token]
	m.heartbeatMu.Unlock()
	if !ok {
		return nil
	}

	s, room, err := m.lockSession(sessionId)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if issuedAt.After(s.lastAck) {
		s.lastAck = issuedAt
	}
	if !s.healthy && m.registry.now().Sub(s.lastAck) <= m.staleAfter {
		s.healthy = true
		room.publishUsers()
	}
	return nil
}
