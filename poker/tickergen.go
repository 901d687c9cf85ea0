package poker

import "time"

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) (<-chan time.Time, func())
}

type ticker struct{}

func (t *ticker) Create(duration time.Duration) (<-chan time.Time, func()) {
	tk := time.NewTicker(duration)
	return tk.C, tk.Stop
}

func NewTickerGen() *ticker {
	return &ticker{}
}
