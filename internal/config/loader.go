package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Embedded is the source name reported when the built-in file was used.
const Embedded = "embedded"

// fileNames are tried in order in each search directory.
var fileNames = []string{"hexarena.yaml", "hexarena.yml", "hexarena.toml"}

// Load reads the configuration and reports where it came from.
// Search order: customPath -> ~/.hexarena/configs/hexarena.{yaml,toml} ->
// ./configs/hexarena.{yaml,toml} -> embedded default.
// Keys missing from the file keep their DefaultConfig values.
func Load(customPath string) (Config, string, error) {
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return Config{}, "", fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		cfg, err := Parse(customPath, data)
		if err != nil {
			return Config{}, "", err
		}
		return cfg, customPath, nil
	}

	for _, dir := range searchDirs() {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			cfg, err := Parse(path, data)
			if err != nil {
				return Config{}, "", err
			}
			return cfg, path, nil
		}
	}

	cfg, err := Parse("hexarena.yaml", defaultYAML)
	if err != nil {
		return DefaultConfig(), Embedded, nil
	}
	return cfg, Embedded, nil
}

// Parse decodes data over DefaultConfig and validates the result. The
// format follows the extension of name: .toml is TOML, anything else YAML.
func Parse(name string, data []byte) (Config, error) {
	cfg := DefaultConfig()
	var err error
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		_, err = toml.Decode(string(data), &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", name, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", name, err)
	}
	return cfg, nil
}

func searchDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".hexarena", "configs"))
	}
	return append(dirs, "configs")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Validate rejects configurations the loop or client cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Simulation.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("simulation.tick_rate must be positive, got %d", c.Simulation.TickRate))
	}
	if c.Simulation.HistoryTicks < 2 {
		errs = append(errs, fmt.Errorf("simulation.history_ticks must be at least 2, got %d", c.Simulation.HistoryTicks))
	}
	if c.Simulation.DeltaEvery <= 0 {
		errs = append(errs, fmt.Errorf("simulation.delta_every must be positive, got %d", c.Simulation.DeltaEvery))
	} else if c.Simulation.DeltaEvery >= c.Simulation.HistoryTicks {
		errs = append(errs, fmt.Errorf("simulation.delta_every %d must be below history_ticks %d", c.Simulation.DeltaEvery, c.Simulation.HistoryTicks))
	}
	if c.Simulation.PingInterval <= 0 || c.Simulation.MaxLatency <= 0 {
		errs = append(errs, errors.New("simulation.ping_interval and max_latency must be positive"))
	}
	if c.Server.SendQueue <= 0 || c.Server.MaxFrame <= 0 {
		errs = append(errs, errors.New("server.send_queue and max_frame must be positive"))
	}
	if c.Server.InputRate <= 0 || c.Server.InputBurst <= 0 {
		errs = append(errs, errors.New("server.input_rate and input_burst must be positive"))
	}
	if c.Client.InputEvery <= 0 || c.Client.FrameRate <= 0 {
		errs = append(errs, errors.New("client.input_every and frame_rate must be positive"))
	}
	switch c.Client.Network {
	case "ws", "kcp":
	default:
		errs = append(errs, fmt.Errorf("client.network must be ws or kcp, got %q", c.Client.Network))
	}
	switch c.Client.Codec {
	case "json", "binary":
	default:
		errs = append(errs, fmt.Errorf("client.codec must be json or binary, got %q", c.Client.Codec))
	}
	if err := c.Physics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("physics: %w", err))
	}
	return errors.Join(errs...)
}

// Marshal renders cfg as YAML that Parse accepts.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
