package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/zkagent/internal/core/domain"
)

// CommandRunner runs the prover binary with stdin and returns its stdout.
type CommandRunner func(ctx context.Context, path string, stdin []byte) ([]byte, error)

// proverRequest is written to the prover's stdin, one per invocation.
type proverRequest struct {
	Action   string         `json:"action"`
	Mnemonic string         `json:"mnemonic"`
	Node     string         `json:"node"`
	ChainID  string         `json:"chain_id,omitempty"`
	Prefix   string         `json:"prefix"`
	GasPrice string         `json:"gas_price,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// proverResponse is read from the prover's stdout.
type proverResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// ProverAgent implements Agent by driving the external prover binary.
// The binary owns key derivation, commitment construction, Groth16 proving and signing;
// secret material only ever reaches it over stdin.
type ProverAgent struct {
	cfg    AgentConfig
	client Client
	run    CommandRunner

	mu       sync.RWMutex
	mnemonic string
	address  string
	ready    bool
	closed   bool
}

// NewProverAgent creates an uninitialized agent. client is used for the node
// handshake and registry lookups.
func NewProverAgent(cfg AgentConfig, client Client, run CommandRunner) (*ProverAgent, error) {
	if strings.TrimSpace(cfg.ProverPath) == "" {
		return nil, errors.New("prover path is required")
	}
	if client == nil {
		return nil, errors.New("chain client is required")
	}
	if run == nil {
		run = ExecRunner
	}
	return &ProverAgent{
		cfg:      cfg,
		client:   client,
		run:      run,
		mnemonic: cfg.Mnemonic,
	}, nil
}

// ProverAgentFactory returns an AgentFactory building ProverAgents on client.
func ProverAgentFactory(client Client, run CommandRunner) AgentFactory {
	return func(ctx context.Context, cfg AgentConfig) (Agent, error) {
		return NewProverAgent(cfg, client, run)
	}
}

// ExecRunner runs path as a subprocess, feeding stdin and collecting stdout.
func ExecRunner(ctx context.Context, path string, stdin []byte) ([]byte, error) {
	// #nosec G204 -- path is operator configuration.
	cmd := exec.CommandContext(ctx, path)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Initialize validates the mnemonic, checks the node is reachable and derives the address.
func (a *ProverAgent) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrShutdown
	}
	if a.ready {
		return nil
	}
	if err := validateMnemonic(a.mnemonic); err != nil {
		return err
	}

	if _, err := a.client.GetStatus(ctx); err != nil {
		return fmt.Errorf("node handshake failed: %w", err)
	}

	var derived struct {
		Address string `json:"address"`
	}
	if err := a.invokeLocked(ctx, "derive", nil, &derived); err != nil {
		return fmt.Errorf("failed to derive address: %w", err)
	}
	if !strings.HasPrefix(derived.Address, a.cfg.AddressPrefix+"1") {
		return fmt.Errorf("derived address %q does not match prefix %q", derived.Address, a.cfg.AddressPrefix)
	}

	a.address = derived.Address
	a.ready = true
	return nil
}

// GetAddress returns the derived address.
func (a *ProverAgent) GetAddress() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkLocked(); err != nil {
		return "", err
	}
	return a.address, nil
}

// IsRegistered looks the address up in the chain's agent registry.
func (a *ProverAgent) IsRegistered(ctx context.Context) (bool, error) {
	address, err := a.GetAddress()
	if err != nil {
		return false, err
	}
	info, err := a.client.GetAgent(ctx, address)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// Register submits the registration transaction under the configured agent name.
func (a *ProverAgent) Register(ctx context.Context) (*domain.TxResult, error) {
	return a.tx(ctx, "register", map[string]any{"name": a.cfg.AgentName})
}

// ShieldTokens deposits amount of denom into the shielded pool.
func (a *ProverAgent) ShieldTokens(ctx context.Context, amount, denom string) (*domain.TxResult, error) {
	if denom == "" {
		denom = a.cfg.Denom
	}
	return a.tx(ctx, "shield", map[string]any{"amount": amount, "denom": denom})
}

// UnshieldTokens withdraws amount to recipient, or to the agent itself when recipient is empty.
func (a *ProverAgent) UnshieldTokens(ctx context.Context, amount, recipient string) (*domain.TxResult, error) {
	params := map[string]any{"amount": amount, "denom": a.cfg.Denom}
	if recipient != "" {
		params["recipient"] = recipient
	}
	return a.tx(ctx, "unshield", params)
}

// GetShieldedBalance returns the prover's view of the private balance.
func (a *ProverAgent) GetShieldedBalance(ctx context.Context) (*domain.ShieldedBalance, error) {
	var balance domain.ShieldedBalance
	if err := a.invoke(ctx, "shielded_balance", nil, &balance); err != nil {
		return nil, fmt.Errorf("failed to get shielded balance: %w", err)
	}
	if balance.Denom == "" {
		balance.Denom = a.cfg.Denom
	}
	return &balance, nil
}

// GetCommitments lists commitments owned by the agent.
func (a *ProverAgent) GetCommitments(ctx context.Context) ([]domain.Commitment, error) {
	var commitments []domain.Commitment
	if err := a.invoke(ctx, "commitments", nil, &commitments); err != nil {
		return nil, fmt.Errorf("failed to get commitments: %w", err)
	}
	return commitments, nil
}

// Shutdown wipes the mnemonic. Later calls fail with ErrShutdown.
func (a *ProverAgent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mnemonic = ""
	a.closed = true
	a.ready = false
	return nil
}

func (a *ProverAgent) tx(ctx context.Context, action string, params map[string]any) (*domain.TxResult, error) {
	var result domain.TxResult
	if err := a.invoke(ctx, action, params, &result); err != nil {
		return nil, fmt.Errorf("%s failed: %w", action, err)
	}
	return &result, nil
}

func (a *ProverAgent) invoke(ctx context.Context, action string, params map[string]any, out any) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err := a.checkLocked(); err != nil {
		return err
	}
	return a.invokeLocked(ctx, action, params, out)
}

// invokeLocked requires a.mu to be held (read or write).
func (a *ProverAgent) invokeLocked(ctx context.Context, action string, params map[string]any, out any) error {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	req, err := json.Marshal(proverRequest{
		Action:   action,
		Mnemonic: a.mnemonic,
		Node:     a.cfg.RPCURL,
		ChainID:  a.cfg.ChainID,
		Prefix:   a.cfg.AddressPrefix,
		GasPrice: a.cfg.GasPrice,
		Params:   params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	stdout, err := a.run(ctx, a.cfg.ProverPath, req)
	if err != nil {
		return fmt.Errorf("prover %s (%s): %w", action, time.Since(start).Round(time.Millisecond), err)
	}

	var resp proverResponse
	if err := json.Unmarshal(stdout, &resp); err != nil {
		return fmt.Errorf("parse prover response: %w", err)
	}
	if !resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown prover error"
		}
		return errors.New(resp.Error)
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("parse prover result: %w", err)
		}
	}
	return nil
}

func (a *ProverAgent) checkLocked() error {
	if a.closed {
		return ErrShutdown
	}
	if !a.ready {
		return ErrNotInitialized
	}
	return nil
}

func validateMnemonic(mnemonic string) error {
	switch len(strings.Fields(mnemonic)) {
	case 12, 15, 18, 21, 24:
		return nil
	case 0:
		return errors.New("mnemonic is empty")
	default:
		return errors.New("mnemonic must have 12, 15, 18, 21 or 24 words")
	}
}
