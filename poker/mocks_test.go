package poker

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/mustlammas/planningpoker/estimation"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- WebsocketConnection ---

type MockWebsocketConnection struct {
	mock.Mock
}

func (m *MockWebsocketConnection) Close(reason string) {
	m.Called(reason)
}

func (m *MockWebsocketConnection) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockWebsocketConnection) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockWebsocketConnection) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUniqueIdGenerator) Dispose(id string) {
	m.Called(id)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) (<-chan time.Time, func()) {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time), func() {}
}

// --- Connection ---

// recordingConn is an in-memory Connection that keeps every frame it is
// sent, decoded.
type recordingConn struct {
	mu      sync.Mutex
	frames  []Envelope
	closed  bool
	reason  string
	sendErr error
}

func (rc *recordingConn) Send(data []byte) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.sendErr != nil {
		return rc.sendErr
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		panic(err)
	}
	rc.frames = append(rc.frames, env)
	return nil
}

func (rc *recordingConn) Close(reason string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	rc.reason = reason
}

func (rc *recordingConn) types() []MessageType {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	types := make([]MessageType, len(rc.frames))
	for i, f := range rc.frames {
		types[i] = f.Type
	}
	return types
}

func (rc *recordingConn) reset() {
	rc.mu.Lock()
	rc.frames = nil
	rc.mu.Unlock()
}

func (rc *recordingConn) isClosed() (bool, string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.closed, rc.reason
}

// last decodes the payload of the most recent frame of type t into out.
func (rc *recordingConn) last(t *testing.T, msgType MessageType, out any) {
	t.Helper()
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for i := len(rc.frames) - 1; i >= 0; i-- {
		if rc.frames[i].Type == msgType {
			require.NoError(t, json.Unmarshal(rc.frames[i].Payload, out))
			return
		}
	}
	require.Failf(t, "frame not found", "no %s frame among %d", msgType, len(rc.frames))
}

func (rc *recordingConn) users(t *testing.T) []estimation.Vote {
	t.Helper()
	var votes []estimation.Vote
	rc.last(t, MsgUpdateUsers, &votes)
	return votes
}

func (rc *recordingConn) result(t *testing.T) estimation.Result {
	t.Helper()
	var res estimation.Result
	rc.last(t, MsgResult, &res)
	return res
}

// --- clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// newTestManager wires a registry with an unlimited room count, a two hour
// idle timeout and the built-in catalog to a manager driven by clock.
func newTestManager(clock *fakeClock) *Manager {
	registry := NewRegistry(estimation.DefaultCatalog(), NewIdGen(), 0, 2*time.Hour)
	registry.now = clock.Now
	return NewManager(registry, 15*time.Second, 2*time.Minute)
}

func mustCreateRoom(t *testing.T, m *Manager) *Room {
	t.Helper()
	room, err := m.registry.CreateRoom("")
	require.NoError(t, err)
	return room
}

func mustJoin(t *testing.T, m *Manager, roomId, username string) (*Session, *recordingConn) {
	t.Helper()
	conn := &recordingConn{}
	s, err := m.Join(roomId, username, conn)
	require.NoError(t, err)
	return s, conn
}
