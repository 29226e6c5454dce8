package loop

import (
	"time"

	"github.com/vovakirdan/hexarena/internal/sim"
)

// Config holds the settings of one server loop.
type Config struct {
	TickTime     time.Duration // fixed simulation step
	HistoryTicks int           // snapshots kept for lag compensation
	DeltaEvery   int           // K: a delta goes out at least every K ticks

	PingInterval        time.Duration
	MaxLatency          time.Duration
	KickOnExcessLatency bool

	InboxSize int // buffered inbound events
	Seed      int64
	Params    sim.Params
}

// DefaultConfig returns 50 ticks per second, one second of history and
// a delta at least every 5 ticks.
func DefaultConfig() Config {
	return Config{
		TickTime:            20 * time.Millisecond,
		HistoryTicks:        50,
		DeltaEvery:          5,
		PingInterval:        2 * time.Second,
		MaxLatency:          500 * time.Millisecond,
		KickOnExcessLatency: false,
		InboxSize:           1024,
		Params:              sim.DefaultParams(),
	}
}
