// Package config provides YAML and TOML configuration for the arena server,
// its transports and the terminal client.
package config

import (
	"time"

	"github.com/vovakirdan/hexarena/internal/client"
	"github.com/vovakirdan/hexarena/internal/loop"
	"github.com/vovakirdan/hexarena/internal/sim"
	"github.com/vovakirdan/hexarena/internal/transport"
)

// Config is the complete configuration of a hexarena binary.
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Simulation SimulationConfig `yaml:"simulation" toml:"simulation"`
	Physics    sim.Params       `yaml:"physics" toml:"physics"`
	Client     ClientConfig     `yaml:"client" toml:"client"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Log        LogConfig        `yaml:"log" toml:"log"`
}

// ServerConfig defines listeners and per-connection limits.
type ServerConfig struct {
	WebSocketAddr string        `yaml:"ws_addr" toml:"ws_addr"`
	WebSocketPath string        `yaml:"ws_path" toml:"ws_path"`
	KCPAddr       string        `yaml:"kcp_addr" toml:"kcp_addr"` // empty disables KCP
	SSHAddr       string        `yaml:"ssh_addr" toml:"ssh_addr"` // empty disables the SSH spectator
	HostKeyPath   string        `yaml:"host_key_path" toml:"host_key_path"`
	SendQueue     int           `yaml:"send_queue" toml:"send_queue"`
	MaxFrame      int           `yaml:"max_frame" toml:"max_frame"`
	ReadTimeout   time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	InputRate     float64       `yaml:"input_rate" toml:"input_rate"`
	InputBurst    int           `yaml:"input_burst" toml:"input_burst"`
}

// SimulationConfig defines the loop's timing.
type SimulationConfig struct {
	TickRate            int           `yaml:"tick_rate" toml:"tick_rate"` // ticks per second
	HistoryTicks        int           `yaml:"history_ticks" toml:"history_ticks"`
	DeltaEvery          int           `yaml:"delta_every" toml:"delta_every"`
	PingInterval        time.Duration `yaml:"ping_interval" toml:"ping_interval"`
	MaxLatency          time.Duration `yaml:"max_latency" toml:"max_latency"`
	KickOnExcessLatency bool          `yaml:"kick_on_excess_latency" toml:"kick_on_excess_latency"`
	Seed                int64         `yaml:"seed" toml:"seed"` // 0 picks one from the clock
}

// ClientConfig defines how the terminal client connects and predicts.
type ClientConfig struct {
	Network      string `yaml:"network" toml:"network"` // "ws" or "kcp"
	Address      string `yaml:"address" toml:"address"`
	Codec        string `yaml:"codec" toml:"codec"` // "json" or "binary"
	Name         string `yaml:"name" toml:"name"`
	InputEvery   int    `yaml:"input_every" toml:"input_every"`
	MaxLeadTicks int    `yaml:"max_lead_ticks" toml:"max_lead_ticks"`
	FrameRate    int    `yaml:"frame_rate" toml:"frame_rate"`
}

// StorageConfig locates the high-score database.
type StorageConfig struct {
	DBPath string `yaml:"db_path" toml:"db_path"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// TickTime is the duration of one simulation step.
func (c Config) TickTime() time.Duration {
	if c.Simulation.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Simulation.TickRate)
}

// Loop returns the server loop settings.
func (c Config) Loop() loop.Config {
	return loop.Config{
		TickTime:            c.TickTime(),
		HistoryTicks:        c.Simulation.HistoryTicks,
		DeltaEvery:          c.Simulation.DeltaEvery,
		PingInterval:        c.Simulation.PingInterval,
		MaxLatency:          c.Simulation.MaxLatency,
		KickOnExcessLatency: c.Simulation.KickOnExcessLatency,
		InboxSize:           1024,
		Seed:                c.Simulation.Seed,
		Params:              c.Physics,
	}
}

// Transport returns the per-connection transport options.
func (c Config) Transport() transport.Options {
	return transport.Options{
		SendQueue:    c.Server.SendQueue,
		MaxFrame:     c.Server.MaxFrame,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		InputRate:    c.Server.InputRate,
		InputBurst:   c.Server.InputBurst,
	}
}

// Reconciler returns the client reconciler settings.
func (c Config) Reconciler() client.Config {
	return client.Config{
		TickTime:     c.TickTime(),
		DeltaEvery:   c.Simulation.DeltaEvery,
		MaxLeadTicks: c.Client.MaxLeadTicks,
	}
}
