package chain

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/zkagent/internal/core/domain"
)

var (
	// ErrNotInitialized is returned by Agent methods called before Initialize
	ErrNotInitialized = errors.New("agent not initialized")
	// ErrShutdown is returned by Agent methods called after Shutdown
	ErrShutdown = errors.New("agent shut down")
)

// Client defines the read-only node queries.
// This is the boundary between the extension and the remote node; every call may fail or be slow.
type Client interface {
	// GetStatus returns the node's network and sync status
	GetStatus(ctx context.Context) (*domain.ChainStatus, error)

	// GetBalance returns the transparent balance of address in denom
	GetBalance(ctx context.Context, address, denom string) (*domain.Coin, error)

	// GetMerkleRoot returns the current shielded commitment tree root
	GetMerkleRoot(ctx context.Context) (*domain.MerkleRoot, error)

	// GetAgent returns the registry record for address, or nil when not registered
	GetAgent(ctx context.Context, address string) (*domain.AgentInfo, error)
}

// Agent is the agent's on-chain identity and signing capability.
// Key derivation, proofs and signing all happen behind this interface.
type Agent interface {
	// Initialize derives the identity from secret material and performs the node handshake
	Initialize(ctx context.Context) error

	// GetAddress returns the bech32 address derived by Initialize
	GetAddress() (string, error)

	// IsRegistered checks the chain's agent registry for this identity
	IsRegistered(ctx context.Context) (bool, error)

	// Register submits the agent registration transaction
	Register(ctx context.Context) (*domain.TxResult, error)

	// ShieldTokens moves a transparent amount of denom into the shielded pool
	ShieldTokens(ctx context.Context, amount, denom string) (*domain.TxResult, error)

	// UnshieldTokens withdraws a shielded amount to recipient (self when empty)
	UnshieldTokens(ctx context.Context, amount, recipient string) (*domain.TxResult, error)

	// GetShieldedBalance returns the private balance from owned commitments
	GetShieldedBalance(ctx context.Context) (*domain.ShieldedBalance, error)

	// GetCommitments lists owned commitments
	GetCommitments(ctx context.Context) ([]domain.Commitment, error)

	// Shutdown releases the identity and wipes secret material
	Shutdown(ctx context.Context) error
}

// AgentConfig carries everything needed to construct an Agent.
type AgentConfig struct {
	Mnemonic      string
	RPCURL        string
	RESTURL       string
	ChainID       string
	AddressPrefix string
	GasPrice      string
	Denom         string
	ProverPath    string
	AgentName     string
	Timeout       time.Duration
}

// AgentFactory constructs an uninitialized Agent.
type AgentFactory func(ctx context.Context, cfg AgentConfig) (Agent, error)
