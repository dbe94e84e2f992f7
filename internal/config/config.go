// Package config loads the system configuration: the protocol table with its
// receivers, and the endpoints of the firing daemon, live feed and API.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jwulff/pyroshow-go/internal/topology"
)

// Feed kinds.
const (
	FeedWebSocket = "websocket"
	FeedMQTT      = "mqtt"
)

// Config is the complete system configuration.
type Config struct {
	Database       string                    `yaml:"database"`
	ActiveProtocol string                    `yaml:"active_protocol"`
	Protocols      map[string]ProtocolConfig `yaml:"protocols"`
	Daemon         DaemonConfig              `yaml:"daemon"`
	Feed           FeedConfig                `yaml:"feed"`
	API            APIConfig                 `yaml:"api"`
}

// ProtocolConfig describes one firing protocol and the receivers it can address.
type ProtocolConfig struct {
	RequireContinuity bool                      `yaml:"require_continuity"`
	Receivers         map[string]ReceiverConfig `yaml:"receivers"`
}

// ReceiverConfig declares the zones and targets one receiver exposes. Target order
// matters: it is the receiver's output order.
type ReceiverConfig struct {
	Label string           `yaml:"label"`
	Cues  map[string][]int `yaml:"cues"`
}

// DaemonConfig locates the firing daemon's local API.
type DaemonConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FeedConfig selects the live state channel.
type FeedConfig struct {
	Kind     string `yaml:"kind"`      // websocket or mqtt
	URL      string `yaml:"url"`       // websocket endpoint
	Broker   string `yaml:"broker"`    // mqtt host:port
	Topic    string `yaml:"topic"`     // mqtt topic carrying snapshots
	ClientID string `yaml:"client_id"` // mqtt client id, generated when empty
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied and no protocols.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file, applies PYRO_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database == "" {
		cfg.Database = "pyroshow.db"
	}
	if cfg.Daemon.Host == "" {
		cfg.Daemon.Host = "127.0.0.1"
	}
	if cfg.Daemon.Port == 0 {
		cfg.Daemon.Port = 8765
	}
	if cfg.Feed.Kind == "" {
		cfg.Feed.Kind = FeedWebSocket
	}
	if cfg.Feed.Kind == FeedWebSocket && cfg.Feed.URL == "" {
		cfg.Feed.URL = fmt.Sprintf("ws://%s:%d/ws", cfg.Daemon.Host, cfg.Daemon.Port)
	}
	if cfg.Feed.Kind == FeedMQTT && cfg.Feed.Topic == "" {
		cfg.Feed.Topic = "pyro/state"
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PYRO_DB"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("PYRO_DAEMON_HOST"); v != "" {
		cfg.Daemon.Host = v
	}
	if v := os.Getenv("PYRO_DAEMON_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Daemon.Port = port
		}
	}
}

// Validate checks the configuration for consistency.
func Validate(cfg *Config) error {
	if cfg.ActiveProtocol != "" {
		if _, ok := cfg.Protocols[cfg.ActiveProtocol]; !ok {
			return fmt.Errorf("active_protocol %q is not defined", cfg.ActiveProtocol)
		}
	}
	for name, proto := range cfg.Protocols {
		for id, rx := range proto.Receivers {
			for zone, targets := range rx.Cues {
				if zone == "" {
					return fmt.Errorf("protocol %q receiver %q: empty zone name", name, id)
				}
				for _, target := range targets {
					if target <= 0 {
						return fmt.Errorf("protocol %q receiver %q zone %q: invalid target %d", name, id, zone, target)
					}
				}
			}
		}
	}
	switch cfg.Feed.Kind {
	case FeedWebSocket:
		if cfg.Feed.URL == "" {
			return fmt.Errorf("feed.url is required for websocket feeds")
		}
	case FeedMQTT:
		if cfg.Feed.Broker == "" {
			return fmt.Errorf("feed.broker is required for mqtt feeds")
		}
	default:
		return fmt.Errorf("unknown feed kind %q", cfg.Feed.Kind)
	}
	if cfg.Daemon.Port <= 0 || cfg.Daemon.Port > 65535 {
		return fmt.Errorf("invalid daemon port %d", cfg.Daemon.Port)
	}
	return nil
}

// Protocol returns the named protocol.
func (c *Config) Protocol(name string) (ProtocolConfig, bool) {
	p, ok := c.Protocols[name]
	return p, ok
}

// ReceiverCues returns the topology declaration of a protocol's receivers.
func (p ProtocolConfig) ReceiverCues() map[string]topology.ReceiverCues {
	out := make(map[string]topology.ReceiverCues, len(p.Receivers))
	for id, rx := range p.Receivers {
		out[id] = topology.ReceiverCues(rx.Cues)
	}
	return out
}

// Topology builds a resolver for the protocol's configured receivers.
func (p ProtocolConfig) Topology() *topology.Resolver {
	return topology.Build(p.ReceiverCues())
}
