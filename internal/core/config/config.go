package config

import (
	"time"

	redisclient "github.com/vietddude/zkagent/internal/infra/redis"
	"github.com/vietddude/zkagent/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Chain     ChainConfig        `yaml:"chain"`
	Stream    StreamConfig       `yaml:"stream"`
	Heartbeat HeartbeatConfig    `yaml:"heartbeat"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds health server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 = gRPC health disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds the node connection and agent identity settings.
type ChainConfig struct {
	Enabled       *bool         `yaml:"enabled"`
	RPCURL        string        `yaml:"rpc_url"`
	RESTURL       string        `yaml:"rest_url"`
	Mnemonic      string        `yaml:"mnemonic"`
	Denom         string        `yaml:"denom"`
	AddressPrefix string        `yaml:"address_prefix"`
	GasPrice      string        `yaml:"gas_price"`
	ProverPath    string        `yaml:"prover_path"`
	AutoRegister  *bool         `yaml:"auto_register"`
	AgentName     string        `yaml:"agent_name"`
	ChainID       string        `yaml:"chain_id"`
	Timeout       time.Duration `yaml:"timeout"`
}

// IsEnabled reports whether the chain features should start. Unset means enabled.
func (c ChainConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AutoRegisterEnabled reports whether bootstrap may submit a registration. Unset means enabled.
func (c ChainConfig) AutoRegisterEnabled() bool {
	return c.AutoRegister == nil || *c.AutoRegister
}

// StatusURL is the base URL probed for liveness: REST when set, otherwise RPC.
func (c ChainConfig) StatusURL() string {
	if c.RESTURL != "" {
		return c.RESTURL
	}
	return c.RPCURL
}

// StreamConfig tunes the node event stream.
type StreamConfig struct {
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// HeartbeatConfig controls the periodic liveness probe.
type HeartbeatConfig struct {
	Schedule string        `yaml:"schedule"` // cron spec, e.g. "@every 30s"
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}
