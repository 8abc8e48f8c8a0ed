package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultRPCURL         = "http://localhost:26657"
	DefaultDenom          = "uagent"
	DefaultAddressPrefix  = "agent"
	DefaultGasPrice       = "0.025uagent"
	DefaultProverPath     = "zkprover"
	DefaultAgentName      = "zkagent"
	DefaultReconnectDelay = 5 * time.Second
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first,
// and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills every unset option with its documented default.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	c := &cfg.Chain
	if c.RPCURL == "" {
		c.RPCURL = DefaultRPCURL
	}
	if c.Denom == "" {
		c.Denom = DefaultDenom
	}
	if c.AddressPrefix == "" {
		c.AddressPrefix = DefaultAddressPrefix
	}
	if c.GasPrice == "" {
		c.GasPrice = DefaultGasPrice
	}
	if c.ProverPath == "" {
		c.ProverPath = DefaultProverPath
	}
	if c.AgentName == "" {
		c.AgentName = DefaultAgentName
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}

	if cfg.Stream.ReconnectDelay == 0 {
		cfg.Stream.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Stream.HandshakeTimeout == 0 {
		cfg.Stream.HandshakeTimeout = 10 * time.Second
	}

	if cfg.Heartbeat.Schedule == "" {
		cfg.Heartbeat.Schedule = "@every 30s"
	}
	if cfg.Heartbeat.Timeout == 0 {
		cfg.Heartbeat.Timeout = 10 * time.Second
	}
	if cfg.Heartbeat.CacheTTL == 0 {
		cfg.Heartbeat.CacheTTL = 10 * time.Second
	}

	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "zkagent:events"
	}
}
