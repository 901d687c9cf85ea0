package poker

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

func (c *client) handle(env Envelope) {
	if env.Type == MsgJoin {
		c.join(env.Payload)
		return
	}

	if c.sessionId == "" {
		log.Debug().Err(ErrNotJoined).Str("type", string(env.Type)).Msg("message ignored")
		return
	}

	var err error
	switch env.Type {
	case MsgVote:
		var p VotePayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = c.manager.Vote(c.sessionId, p.Vote)
		}
	case MsgResetVote:
		err = c.manager.ResetVoteBy(c.sessionId)
	case MsgBecomeObserver:
		err = c.manager.BecomeObserver(c.sessionId)
	case MsgBecomeParticipant:
		err = c.manager.BecomeParticipant(c.sessionId)
	case MsgRevealVotes:
		err = c.manager.RevealVotesBy(c.sessionId)
	case MsgUpdateConfig:
		var p UpdateConfigPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = c.manager.UpdateTemplateBy(c.sessionId, p.Template)
		}
	case MsgHeartbeat:
		var p HeartbeatPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = c.manager.Ack(c.sessionId, p.Token)
		}
	default:
		log.Debug().Str("type", string(env.Type)).Msg("unknown message type")
		return
	}

	if err != nil {
		log.Debug().Err(err).Str("session", c.sessionId).Str("room", c.roomId).Str("type", string(env.Type)).Msg("message rejected")
	}
}

func (c *client) join(payload json.RawMessage) {
	if c.sessionId != "" {
		publishError(c, ErrAlreadyJoined)
		return
	}

	var p JoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Debug().Err(err).Msg("malformed join")
		return
	}

	s, err := c.manager.Join(p.RoomId, p.Username, c)
	if err != nil {
		log.Debug().Err(err).Str("room", p.RoomId).Str("username", p.Username).Msg("join refused")
		return
	}
	c.sessionId = s.Id()
	c.roomId = s.RoomId()
}
