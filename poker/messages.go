package poker

import (
	"encoding/json"

	"github.com/mustlammas/planningpoker/estimation"
	"github.com/rs/zerolog/log"
)

type MessageType string

// Client to server.
const (
	MsgJoin              MessageType = "JOIN"
	MsgVote              MessageType = "VOTE"
	MsgBecomeObserver    MessageType = "BECOME_OBSERVER"
	MsgBecomeParticipant MessageType = "BECOME_PARTICIPANT"
	MsgRevealVotes       MessageType = "REVEAL_VOTES"
	MsgUpdateConfig      MessageType = "UPDATE_CONFIG"
)

// Server to client.
const (
	MsgUsernameOk  MessageType = "USERNAME_OK"
	MsgError       MessageType = "ERROR"
	MsgUpdateUsers MessageType = "UPDATE_USERS"
	MsgConfig      MessageType = "CONFIG"
	MsgRoomRemoved MessageType = "ROOM_REMOVED"
	MsgResult      MessageType = "RESULT"
)

// Both directions.
const (
	MsgResetVote MessageType = "RESET_VOTE"
	MsgHeartbeat MessageType = "HEARTBEAT"
)

type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinPayload struct {
	Username string `json:"username"`
	RoomId   string `json:"roomId"`
}

type VotePayload struct {
	Vote string `json:"vote"`
}

type UpdateConfigPayload struct {
	Template estimation.Template `json:"template"`
}

type HeartbeatPayload struct {
	Token uint64 `json:"token"`
}

type UsernameOkPayload struct {
	Username string `json:"username"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ConfigPayload struct {
	Templates []estimation.Template `json:"templates"`
	Template  estimation.Template   `json:"template"`
}

func encode(t MessageType, payload any) []byte {
	env := Envelope{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("type", string(t)).Msg("failed to encode payload")
		} else {
			env.Payload = raw
		}
	}
	data, _ := json.Marshal(env)
	return data
}

func errorPayload(err error) ErrorPayload {
	msg, ok := userMessages[err]
	if !ok {
		msg = err.Error()
	}
	return ErrorPayload{Code: err.Error(), Message: msg}
}
