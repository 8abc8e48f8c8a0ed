// Package identity derives the agent's on-chain identity and makes sure it is registered.
package identity

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vietddude/zkagent/internal/infra/chain"
	"github.com/vietddude/zkagent/internal/metrics"
)

// Params carries everything Bootstrap needs besides the mnemonic.
type Params struct {
	Agent        chain.AgentConfig
	Factory      chain.AgentFactory
	AutoRegister bool
	Logger       *slog.Logger
}

// Result is the externally visible outcome of a bootstrap.
type Result struct {
	Address        string `json:"address"`
	Registered     bool   `json:"registered"`
	AutoRegistered bool   `json:"auto_registered"`
}

// Handle is a fully initialized identity. It is never partially populated.
type Handle struct {
	Address        string
	Registered     bool
	AutoRegistered bool
	Agent          chain.Agent
}

// Result returns the identity outcome without the agent.
func (h *Handle) Result() Result {
	return Result{
		Address:        h.Address,
		Registered:     h.Registered,
		AutoRegistered: h.AutoRegistered,
	}
}

// Bootstrap initializes the identity derived from mnemonic and registers it
// when needed. It returns nil when no mnemonic is configured or when the
// identity cannot be initialized; registration problems leave the agent
// running unregistered.
func Bootstrap(ctx context.Context, mnemonic string, p Params) *Handle {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "identity")

	if strings.TrimSpace(mnemonic) == "" {
		logger.Warn("No mnemonic configured, chain identity disabled")
		metrics.Registrations.WithLabelValues("skipped").Inc()
		return nil
	}
	if p.Factory == nil {
		logger.Error("No agent factory configured, chain identity disabled")
		metrics.Registrations.WithLabelValues("failed").Inc()
		return nil
	}

	cfg := p.Agent
	cfg.Mnemonic = mnemonic

	agent, err := p.Factory(ctx, cfg)
	if err != nil {
		logger.Error("Failed to construct agent", "error", err)
		metrics.Registrations.WithLabelValues("failed").Inc()
		return nil
	}
	if err := agent.Initialize(ctx); err != nil {
		logger.Error("Failed to initialize agent", "error", err)
		if shutdownErr := agent.Shutdown(ctx); shutdownErr != nil {
			logger.Debug("Shutdown of half-built agent failed", "error", shutdownErr)
		}
		metrics.Registrations.WithLabelValues("failed").Inc()
		return nil
	}

	address, err := agent.GetAddress()
	if err != nil {
		logger.Error("Failed to read agent address", "error", err)
		_ = agent.Shutdown(ctx)
		metrics.Registrations.WithLabelValues("failed").Inc()
		return nil
	}
	logger = logger.With("address", address)

	handle := &Handle{Address: address, Agent: agent}
	handle.Registered, handle.AutoRegistered = ensureRegistered(ctx, agent, p.AutoRegister, logger)
	return handle
}

// ensureRegistered reports (registered, autoRegistered). At most one
// registration transaction is sent.
func ensureRegistered(ctx context.Context, agent chain.Agent, autoRegister bool, logger *slog.Logger) (bool, bool) {
	registered, err := agent.IsRegistered(ctx)
	if err != nil {
		logger.Warn("Could not query registration status, assuming unregistered", "error", err)
		registered = false
	}
	if registered {
		logger.Info("Agent already registered")
		metrics.Registrations.WithLabelValues("already_registered").Inc()
		return true, false
	}

	if !autoRegister {
		logger.Info("Agent not registered and auto-register is disabled")
		metrics.Registrations.WithLabelValues("skipped").Inc()
		return false, false
	}

	result, err := agent.Register(ctx)
	if err != nil {
		logger.Warn("Registration failed, it can be retried later", "error", err)
		metrics.Registrations.WithLabelValues("failed").Inc()
		return false, false
	}
	if !result.OK() {
		logger.Warn("Registration rejected by chain",
			"code", result.Code,
			"tx_hash", result.TxHash,
			"raw_log", result.RawLog,
		)
		metrics.Registrations.WithLabelValues("rejected").Inc()
		return false, false
	}

	logger.Info("Agent registered", "tx_hash", result.TxHash, "height", result.Height)
	metrics.Registrations.WithLabelValues("registered").Inc()
	return true, true
}

// Register retries registration for an initialized, unregistered handle and
// returns the updated handle. h itself is not modified.
func Register(ctx context.Context, h *Handle, logger *slog.Logger) *Handle {
	if h.Registered {
		return h
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "identity", "address", h.Address)

	next := *h
	next.Registered, next.AutoRegistered = ensureRegistered(ctx, h.Agent, true, logger)
	return &next
}
