package poker

import (
	"github.com/mustlammas/planningpoker/estimation"
)

// Close reasons sent in the websocket close frame.
const (
	closeRoomRemoved    = "room-removed"
	closeConnectionLost = "connection-lost"
)

// Room broadcasts run with r.mu held, so every session in the room sees
// the same snapshot. Frames are encoded once and queued per session.

func (r *Room) broadcast(data []byte) {
	for _, s := range r.sessions {
		s.send(data)
	}
}

// publishUsers sends the user list followed by the server-side verdict.
func (r *Room) publishUsers() {
	votes := r.votes()
	r.broadcast(encode(MsgUpdateUsers, votes))
	r.publishResult(votes)
}

func (r *Room) publishResult(votes []estimation.Vote) {
	r.broadcast(encode(MsgResult, estimation.ComputeResult(votes, r.template)))
}

func (r *Room) publishTemplate() {
	r.broadcast(encode(MsgConfig, ConfigPayload{Templates: r.templates, Template: r.template}))
}

func (r *Room) publishReset() {
	r.broadcast(encode(MsgResetVote, nil))
}

func (r *Room) publishHeartbeat(token uint64) {
	r.broadcast(encode(MsgHeartbeat, HeartbeatPayload{Token: token}))
}

// publishRoomRemoved is terminal: every connection is closed after the notice.
func (r *Room) publishRoomRemoved() {
	data := encode(MsgRoomRemoved, nil)
	for _, s := range r.sessions {
		s.send(data)
		s.conn.Close(closeRoomRemoved)
	}
}

func publishError(conn Connection, err error) {
	_ = conn.Send(encode(MsgError, errorPayload(err)))
}
