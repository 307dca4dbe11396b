package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
// PinningEnabled is a pointer so an absent key is not read as false.
type Config struct {
	Addr            string   `json:"addr" yaml:"addr" toml:"addr"`
	WorkerBin       string   `json:"worker_bin" yaml:"worker_bin" toml:"worker_bin"`
	WorkerArgs      []string `json:"worker_args" yaml:"worker_args" toml:"worker_args"`
	BasePort        int      `json:"base_port" yaml:"base_port" toml:"base_port"`
	VoicePortOffset int      `json:"voice_port_offset" yaml:"voice_port_offset" toml:"voice_port_offset"`
	TotalCores      int      `json:"total_cores" yaml:"total_cores" toml:"total_cores"`
	ReservedCores   int      `json:"reserved_cores" yaml:"reserved_cores" toml:"reserved_cores"`
	PinningEnabled  *bool    `json:"pinning_enabled" yaml:"pinning_enabled" toml:"pinning_enabled"`
	MaxSlots        int      `json:"max_slots" yaml:"max_slots" toml:"max_slots"`
	DrainTimeoutSec int      `json:"drain_timeout_sec" yaml:"drain_timeout_sec" toml:"drain_timeout_sec"`
	SpawnTimeoutSec int      `json:"spawn_timeout_sec" yaml:"spawn_timeout_sec" toml:"spawn_timeout_sec"`
	PollIntervalSec int      `json:"poll_interval_sec" yaml:"poll_interval_sec" toml:"poll_interval_sec"`
	StopPolicy      string   `json:"stop_policy" yaml:"stop_policy" toml:"stop_policy"`
	DataDir         string   `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	NATSURL         string   `json:"nats_url" yaml:"nats_url" toml:"nats_url"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
