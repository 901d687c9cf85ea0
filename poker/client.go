package poker

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type ClientOptions struct {
	SendBuffer   int
	RateLimit    float64
	RateBurst    int
	PingInterval time.Duration
}

// client is one websocket peer. It is the Connection its session sends
// through: room broadcasts land in outbox and WritePump drains it.
type client struct {
	socket        WebsocketConnection
	manager       *Manager
	tickerCreator PeriodicTickerChannelCreator
	limiter       *rate.Limiter
	pingInterval  time.Duration

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	reason    string

	// owned by the ReadPump goroutine
	sessionId string
	roomId    string
}

func NewClient(socket WebsocketConnection, manager *Manager, tickerCreator PeriodicTickerChannelCreator, opts ClientOptions) *client {
	return &client{
		socket:        socket,
		manager:       manager,
		tickerCreator: tickerCreator,
		limiter:       rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		pingInterval:  opts.PingInterval,
		outbox:        make(chan []byte, opts.SendBuffer),
		done:          make(chan struct{}),
	}
}

func (c *client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.outbox <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close asks WritePump to flush what is queued and close the socket with
// reason. Only the first reason is kept.
func (c *client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *client) ReadPump() {
	defer func() {
		if c.sessionId != "" {
			if err := c.manager.Disconnect(c.sessionId); err != nil {
				log.Debug().Err(err).Str("session", c.sessionId).Msg("disconnect")
			}
		}
		c.Close("")
	}()

	for {
		data, err := c.socket.Read()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			log.Debug().Str("session", c.sessionId).Msg("rate limited")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.handle(env)
	}
}

func (c *client) WritePump() {
	pings, stop := c.tickerCreator.Create(c.pingInterval)
	defer stop()

	for {
		select {
		case data := <-c.outbox:
			if err := c.socket.Write(data); err != nil {
				c.Close(closeConnectionLost)
				c.socket.Close(c.reason)
				return
			}
		case <-pings:
			if err := c.socket.Ping(); err != nil {
				c.Close(closeConnectionLost)
				c.socket.Close(c.reason)
				return
			}
		case <-c.done:
			c.flush()
			c.socket.Close(c.reason)
			return
		}
	}
}

// flush writes out whatever was queued before Close, such as ROOM_REMOVED.
func (c *client) flush() {
	for {
		select {
		case data := <-c.outbox:
			if err := c.socket.Write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
