package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"automesh/mesh/engine"
)

var log = logrus.New()

// Config represents the configuration for the automesh daemon
type Config struct {
	// Default config file location
	configFile string

	// Node settings select the protocol role this daemon plays
	Node struct {
		Role string `json:"role"`
	} `json:"node"`

	// Mesh settings tune the registry, the failure detector and the tick loop
	Mesh struct {
		MaxPeers         int    `json:"max_peers"`
		FailureThreshold int    `json:"failure_threshold"`
		TickMs           int    `json:"tick_ms"`
		TickJitterMs     int    `json:"tick_jitter_ms"`
		SendEveryTicks   int    `json:"send_every_ticks"`
		Heartbeat        string `json:"heartbeat"`
	} `json:"mesh"`

	Network struct {
		GroupAddress  string `json:"group_address"`
		ListenAddress string `json:"listen_address"`
	} `json:"network"`

	DataStore struct {
		PeerBookPath   string `json:"peerbook"`
		PruneAfterDays int    `json:"prune_after_days"`
	} `json:"datastore"`

	// Metrics settings control the Prometheus endpoint; an empty listen
	// address disables it
	Metrics struct {
		ListenAddress string `json:"listen_address"`
	} `json:"metrics"`
}

// NewEmptyConfig generates a new configuration with default settings
func NewEmptyConfig(configFile string) *Config {
	cfg := &Config{}

	cfg.configFile = configFile

	cfg.Node.Role = engine.RoleMesh.String()

	cfg.Mesh.MaxPeers = engine.DefaultMaxPeers
	cfg.Mesh.FailureThreshold = engine.DefaultFailureThreshold
	cfg.Mesh.TickMs = 1000
	cfg.Mesh.TickJitterMs = 100
	cfg.Mesh.SendEveryTicks = engine.DefaultSendEveryTicks
	cfg.Mesh.Heartbeat = "hi"

	cfg.Network.GroupAddress = "239.255.42.99:17999"
	cfg.Network.ListenAddress = "127.0.0.1:17998"

	cfg.DataStore.PeerBookPath = "/tmp/automesh/peerbook"
	cfg.DataStore.PruneAfterDays = 30

	cfg.Metrics.ListenAddress = "127.0.0.1:17990"

	return cfg
}

func NewConfigFromFile(configFile string) (*Config, error) {
	cfg := NewEmptyConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	if _, err := engine.ParseRole(c.Node.Role); err != nil {
		return err
	}
	if c.Mesh.MaxPeers <= 0 {
		return fmt.Errorf("max_peers must be positive, got %d", c.Mesh.MaxPeers)
	}
	if c.Mesh.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive, got %d", c.Mesh.FailureThreshold)
	}
	if c.Mesh.TickMs <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", c.Mesh.TickMs)
	}
	if c.Mesh.TickJitterMs < 0 || c.Mesh.TickJitterMs >= c.Mesh.TickMs {
		return fmt.Errorf("tick_jitter_ms must be in [0, tick_ms), got %d", c.Mesh.TickJitterMs)
	}
	if c.Mesh.SendEveryTicks <= 0 {
		return fmt.Errorf("send_every_ticks must be positive, got %d", c.Mesh.SendEveryTicks)
	}
	if c.Network.GroupAddress == "" {
		return fmt.Errorf("network group_address must be set")
	}
	if c.Network.ListenAddress == "" {
		return fmt.Errorf("network listen_address must be set")
	}
	if c.DataStore.PruneAfterDays < 0 {
		return fmt.Errorf("prune_after_days must not be negative, got %d", c.DataStore.PruneAfterDays)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save() error {
	log.Infof("Saving config to %s", c.configFile)

	// We'll marshall our structure to JSON and write it into a file
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.configFile, data, 0644)
}

func (c *Config) Load() error {
	log.Infof("Loading config from %s", c.configFile)
	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c); err != nil {
		return err
	}

	return nil
}
