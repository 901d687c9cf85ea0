package poker

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testClientOptions = ClientOptions{
	SendBuffer:   64,
	RateLimit:    100,
	RateBurst:    100,
	PingInterval: 30 * time.Second,
}

// drain empties the outbox and returns the queued frame types.
func drain(t *testing.T, c *client) []MessageType {
	t.Helper()
	var types []MessageType
	for {
		select {
		case data := <-c.outbox:
			var env Envelope
			require.NoError(t, json.Unmarshal(data, &env))
			types = append(types, env.Type)
		default:
			return types
		}
	}
}

func runReadPump(t *testing.T, m *Manager, opts ClientOptions, frames ...[]byte) *client {
	t.Helper()
	mockSocket := &MockWebsocketConnection{}
	for _, f := range frames {
		mockSocket.On("Read").Return(f, nil).Once()
	}
	mockSocket.On("Read").Return([]byte{}, assert.AnError).Once()

	c := NewClient(mockSocket, m, NewTickerGen(), opts)
	wg := sync.WaitGroup{}
	wg.Go(func() {
		c.ReadPump()
	})
	// on read error, the goroutine must release
	wg.Wait()

	mockSocket.AssertExpectations(t)
	return c
}

func TestReadPump(t *testing.T) {
	t.Parallel()

	t.Run("Read Error", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(newFakeClock())
		c := runReadPump(t, m, testClientOptions)

		_, open := <-c.done
		assert.False(t, open)
		assert.Empty(t, drain(t, c))
	})

	t.Run("Join Then Leave", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(newFakeClock())
		room := mustCreateRoom(t, m)
		_, watcher := mustJoin(t, m, room.Id(), "watcher")

		c := runReadPump(t, m, testClientOptions,
			encode(MsgJoin, JoinPayload{Username: "alice", RoomId: room.Id()}),
			encode(MsgVote, VotePayload{Vote: "3"}),
		)

		assert.Equal(t, []MessageType{MsgUsernameOk, MsgUpdateUsers, MsgResult, MsgConfig, MsgUpdateUsers, MsgResult}, drain(t, c))
		assert.NotEmpty(t, c.sessionId)
		assert.Equal(t, room.Id(), c.roomId)

		// the pump disconnects on exit
		assert.Equal(t, 1, m.SessionCount())
		assert.Len(t, watcher.users(t), 1)
	})

	t.Run("Read Garbage Data", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(newFakeClock())
		c := runReadPump(t, m, testClientOptions, []byte{1, 5}, []byte(`{"type":`))
		assert.Empty(t, drain(t, c))
		assert.Empty(t, c.sessionId)
	})

	t.Run("Messages Before Join Are Ignored", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(newFakeClock())
		room := mustCreateRoom(t, m)
		_, watcher := mustJoin(t, m, room.Id(), "watcher")
		watcher.reset()

		c := runReadPump(t, m, testClientOptions,
			encode(MsgVote, VotePayload{Vote: "3"}),
			encode(MsgResetVote, nil),
		)
		assert.Empty(t, drain(t, c))
		assert.Empty(t, watcher.types())
	})

	t.Run("Second Join Is Refused", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(newFakeClock())
		room := mustCreateRoom(t, m)
		join := encode(MsgJoin, JoinPayload{Username: "alice", RoomId: room.Id()})

		c := runReadPump(t, m, testClientOptions, join, join)

		types := drain(t, c)
		require.NotEmpty(t, types)
		assert.Equal(t, MsgError, types[len(types)-1])
	})

	t.Run("Failed Join Can Be Retried", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(newFakeClock())
		room := mustCreateRoom(t, m)
		mustJoin(t, m, room.Id(), "alice")

		c := runReadPump(t, m, testClientOptions,
			encode(MsgJoin, JoinPayload{Username: "alice", RoomId: room.Id()}),
			encode(MsgJoin, JoinPayload{Username: "alice2", RoomId: room.Id()}),
		)
		assert.Equal(t, []MessageType{MsgError, MsgUsernameOk, MsgUpdateUsers, MsgResult, MsgConfig}, drain(t, c))
	})

	t.Run("Spam Messages Rate Limiting", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(newFakeClock())
		room := mustCreateRoom(t, m)
		_, watcher := mustJoin(t, m, room.Id(), "watcher")
		watcher.reset()

		opts := testClientOptions
		opts.RateLimit = 0.001
		opts.RateBurst = 1
		runReadPump(t, m, opts,
			encode(MsgJoin, JoinPayload{Username: "spammer", RoomId: room.Id()}),
			encode(MsgVote, VotePayload{Vote: "1"}),
			encode(MsgVote, VotePayload{Vote: "2"}),
			encode(MsgVote, VotePayload{Vote: "3"}),
		)

		// join and leave only
		assert.Equal(t, []MessageType{MsgUpdateUsers, MsgResult, MsgConfig, MsgUpdateUsers, MsgResult}, watcher.types())
	})
}

func TestWritePump(t *testing.T) {
	t.Parallel()

	t.Run("Flushes Then Closes With Reason", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		mockTicker := &MockPeriodicTickerChannelCreator{}
		mockTicker.On("Create", testClientOptions.PingInterval).Return(make(chan time.Time))

		first := encode(MsgUpdateUsers, nil)
		last := encode(MsgRoomRemoved, nil)
		mockSocket.On("Write", first).Return(nil).Once()
		mockSocket.On("Write", last).Return(nil).Once()
		mockSocket.On("Close", closeRoomRemoved).Return().Once()

		c := NewClient(mockSocket, nil, mockTicker, testClientOptions)
		require.NoError(t, c.Send(first))
		require.NoError(t, c.Send(last))
		c.Close(closeRoomRemoved)
		c.Close("ignored")

		wg := sync.WaitGroup{}
		wg.Go(func() {
			c.WritePump()
		})
		wg.Wait()

		assert.ErrorIs(t, c.Send(first), ErrConnectionClosed)
		mockSocket.AssertExpectations(t)
		mockTicker.AssertExpectations(t)
	})

	t.Run("Write Error", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		mockTicker := &MockPeriodicTickerChannelCreator{}
		mockTicker.On("Create", testClientOptions.PingInterval).Return(make(chan time.Time))
		mockSocket.On("Write", mock.Anything).Return(assert.AnError).Once()
		mockSocket.On("Close", closeConnectionLost).Return().Once()

		c := NewClient(mockSocket, nil, mockTicker, testClientOptions)
		wg := sync.WaitGroup{}
		wg.Go(func() {
			c.WritePump()
		})
		require.NoError(t, c.Send(encode(MsgHeartbeat, HeartbeatPayload{Token: 1})))
		wg.Wait()

		assert.ErrorIs(t, c.Send([]byte("late")), ErrConnectionClosed)
		mockSocket.AssertExpectations(t)
	})

	t.Run("Ping", func(t *testing.T) {
		t.Parallel()
		mockSocket := &MockWebsocketConnection{}
		mockTicker := &MockPeriodicTickerChannelCreator{}
		pings := make(chan time.Time)
		mockTicker.On("Create", testClientOptions.PingInterval).Return(pings)
		mockSocket.On("Ping").Return(nil).Once()
		mockSocket.On("Ping").Return(assert.AnError).Once()
		mockSocket.On("Close", closeConnectionLost).Return().Once()

		c := NewClient(mockSocket, nil, mockTicker, testClientOptions)
		wg := sync.WaitGroup{}
		wg.Go(func() {
			c.WritePump()
		})
		pings <- time.Now()
		pings <- time.Now()
		wg.Wait()

		mockSocket.AssertExpectations(t)
	})
}

func TestClient_SendBufferFull(t *testing.T) {
	opts := testClientOptions
	opts.SendBuffer = 1
	c := NewClient(&MockWebsocketConnection{}, nil, NewTickerGen(), opts)

	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), ErrSendBufferFull)
}
