package config

import (
	_ "embed"
	"time"

	"github.com/vovakirdan/hexarena/internal/sim"
)

//go:embed defaults/hexarena.yaml
var defaultYAML []byte

// DefaultConfig returns the built-in configuration: 50 ticks per second,
// one second of history and a delta at least every 5 ticks.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			WebSocketAddr: ":8080",
			WebSocketPath: "/ws",
			KCPAddr:       ":8081",
			SSHAddr:       "",
			SendQueue:     256,
			MaxFrame:      1 << 20,
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  time.Second,
			InputRate:     60,
			InputBurst:    10,
		},
		Simulation: SimulationConfig{
			TickRate:     50,
			HistoryTicks: 50,
			DeltaEvery:   5,
			PingInterval: 2 * time.Second,
			MaxLatency:   500 * time.Millisecond,
		},
		Physics: sim.DefaultParams(),
		Client: ClientConfig{
			Network:      "ws",
			Address:      "ws://localhost:8080/ws",
			Codec:        "binary",
			InputEvery:   2,
			MaxLeadTicks: 10,
			FrameRate:    30,
		},
		Storage: StorageConfig{
			DBPath: "~/.hexarena/scores.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return defaultYAML
}
