package poker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Lobby drives the time-based work of the manager: the idle-room sweep and
// the application heartbeat. Everything else happens on the caller's
// goroutine under the room locks.
type Lobby struct {
	manager           *Manager
	tickerCreator     PeriodicTickerChannelCreator
	sweepInterval     time.Duration
	heartbeatInterval time.Duration
}

func NewLobby(manager *Manager, tickerCreator PeriodicTickerChannelCreator, sweepInterval, heartbeatInterval time.Duration) *Lobby {
	return &Lobby{
		manager:           manager,
		tickerCreator:     tickerCreator,
		sweepInterval:     sweepInterval,
		heartbeatInterval: heartbeatInterval,
	}
}

// LobbyActor runs until ctx is done. started is closed once both tickers
// exist.
func (l *Lobby) LobbyActor(ctx context.Context, started chan struct{}) {
	sweepTicker, stopSweep := l.tickerCreator.Create(l.sweepInterval)
	defer stopSweep()
	heartbeatTicker, stopHeartbeat := l.tickerCreator.Create(l.heartbeatInterval)
	defer stopHeartbeat()

	close(started)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-sweepTicker:
			if n := l.manager.SweepIdleRooms(now); n > 0 {
				log.Info().Int("evicted", n).Int("rooms", l.manager.registry.Count()).Msg("idle sweep")
			}
		case now := <-heartbeatTicker:
			l.manager.Heartbeat(now)
		}
	}
}
