package poker

import (
	"time"

	"github.com/mustlammas/planningpoker/estimation"
	"github.com/rs/zerolog/log"
)

// Connection is the outbound half of a client's transport. Send must not
// block; Close may be called more than once.
type Connection interface {
	Send(data []byte) error
	Close(reason string)
}

// Session binds one live connection to a room under a username.
// Every field below conn is guarded by the owning room's lock.
type Session struct {
	id       string
	username string
	roomId   string
	conn     Connection

	vote     string
	observer bool
	healthy  bool
	lastAck  time.Time
}

func (s *Session) Id() string       { return s.id }
func (s *Session) Username() string { return s.username }
func (s *Session) RoomId() string   { return s.roomId }

func (s *Session) view() estimation.Vote {
	return estimation.Vote{
		Username: s.username,
		Vote:     s.vote,
		Observer: s.observer,
		Healthy:  s.healthy,
	}
}

// send drops the connection when it cannot keep up; its read side then
// disconnects the session the usual way.
func (s *Session) send(data []byte) {
	if err := s.conn.Send(data); err != nil {
		log.Debug().Err(err).Str("session", s.id).Str("room", s.roomId).Msg("dropping connection")
		s.conn.Close(err.Error())
	}
}
