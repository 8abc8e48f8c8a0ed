package tools

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/identity"
	"github.com/vietddude/zkagent/internal/infra/chain"
	"github.com/vietddude/zkagent/internal/infra/storage"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 500
)

var amountPattern = regexp.MustCompile(`^[0-9]+$`)

// Backend supplies the shared chain handles to the tools. Any handle may be
// nil when the chain features are disabled or bootstrap failed.
type Backend interface {
	Client() chain.Client
	Agent() chain.Agent
	CurrentAddress() string
	Denom() string
	Heartbeat(ctx context.Context) domain.HeartbeatResult
	Journal() storage.EventRepository
	Rebootstrap(ctx context.Context) (*identity.Result, error)
}

// ChainTools returns the chain query and transaction tools bound to b.
func ChainTools(b Backend) []*Tool {
	h := &chainHandlers{b: b}
	return []*Tool{
		// Queries
		{
			Definition: Definition{
				Name:            "chain_status",
				Description:     "Get the connected node's network and sync status",
				InputSchemaJSON: `{"type":"object","properties":{}}`,
			},
			Handler: h.Status,
		},
		{
			Definition: Definition{
				Name:            "chain_balance",
				Description:     "Get a transparent token balance (defaults to this agent's address)",
				InputSchemaJSON: `{"type":"object","properties":{"address":{"type":"string"},"denom":{"type":"string"}}}`,
			},
			Handler: h.Balance,
		},
		{
			Definition: Definition{
				Name:            "chain_shielded_balance",
				Description:     "Get this agent's private balance in the shielded pool",
				InputSchemaJSON: `{"type":"object","properties":{}}`,
			},
			Handler: h.ShieldedBalance,
		},
		{
			Definition: Definition{
				Name:            "chain_merkle_root",
				Description:     "Get the current root of the shielded commitment tree",
				InputSchemaJSON: `{"type":"object","properties":{}}`,
			},
			Handler: h.MerkleRoot,
		},
		{
			Definition: Definition{
				Name:            "chain_agent_info",
				Description:     "Look up an agent in the on-chain registry (defaults to this agent)",
				InputSchemaJSON: `{"type":"object","properties":{"address":{"type":"string"}}}`,
			},
			Handler: h.AgentInfo,
		},
		{
			Definition: Definition{
				Name:            "chain_heartbeat",
				Description:     "Report the latest node liveness probe",
				InputSchemaJSON: `{"type":"object","properties":{}}`,
			},
			Handler: h.Heartbeat,
		},
		{
			Definition: Definition{
				Name:            "chain_observed_events",
				Description:     "List recently observed commitments and registrations, newest first",
				InputSchemaJSON: `{"type":"object","properties":{"kind":{"type":"string","enum":["commitment_observed","agent_registered"]},"limit":{"type":"integer","minimum":1,"maximum":500}}}`,
			},
			Handler: h.ObservedEvents,
		},
		// Transactions
		{
			Definition: Definition{
				Name:             "chain_shield",
				Description:      "Move transparent tokens into the shielded pool",
				InputSchemaJSON:  `{"type":"object","properties":{"amount":{"type":"string"},"denom":{"type":"string"}},"required":["amount"]}`,
				RequiresApproval: true,
			},
			Handler: h.Shield,
		},
		{
			Definition: Definition{
				Name:             "chain_unshield",
				Description:      "Withdraw shielded tokens to a transparent address (defaults to this agent)",
				InputSchemaJSON:  `{"type":"object","properties":{"amount":{"type":"string"},"recipient":{"type":"string"}},"required":["amount"]}`,
				RequiresApproval: true,
			},
			Handler: h.Unshield,
		},
		{
			Definition: Definition{
				Name:             "chain_private_transfer",
				Description:      "Transfer shielded tokens to another agent (not yet available)",
				InputSchemaJSON:  `{"type":"object","properties":{"amount":{"type":"string"},"recipient":{"type":"string"}},"required":["amount","recipient"]}`,
				RequiresApproval: true,
			},
			Handler: h.PrivateTransfer,
		},
		{
			Definition: Definition{
				Name:             "chain_register",
				Description:      "Register this agent in the on-chain registry if it is not registered yet",
				InputSchemaJSON:  `{"type":"object","properties":{}}`,
				RequiresApproval: true,
			},
			Handler: h.Register,
		},
	}
}

type chainHandlers struct {
	b Backend
}

func (h *chainHandlers) client() (chain.Client, error) {
	c := h.b.Client()
	if c == nil {
		return nil, notInitialized("chain client")
	}
	return c, nil
}

func (h *chainHandlers) agent() (chain.Agent, error) {
	a := h.b.Agent()
	if a == nil {
		return nil, notInitialized("agent identity")
	}
	return a, nil
}

// Query handlers

func (h *chainHandlers) Status(ctx context.Context, input json.RawMessage) (any, error) {
	c, err := h.client()
	if err != nil {
		return nil, err
	}
	return c.GetStatus(ctx)
}

type balanceInput struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
}

func (h *chainHandlers) Balance(ctx context.Context, input json.RawMessage) (any, error) {
	var in balanceInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	c, err := h.client()
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		address = h.b.CurrentAddress()
	}
	if address == "" {
		return nil, invalidArgument("address is required when the agent has no identity")
	}
	denom := strings.TrimSpace(in.Denom)
	if denom == "" {
		denom = h.b.Denom()
	}

	coin, err := c.GetBalance(ctx, address, denom)
	if err != nil {
		return nil, err
	}
	return map[string]any{"address": address, "balance": coin}, nil
}

func (h *chainHandlers) ShieldedBalance(ctx context.Context, input json.RawMessage) (any, error) {
	a, err := h.agent()
	if err != nil {
		return nil, err
	}
	return a.GetShieldedBalance(ctx)
}

func (h *chainHandlers) MerkleRoot(ctx context.Context, input json.RawMessage) (any, error) {
	c, err := h.client()
	if err != nil {
		return nil, err
	}
	return c.GetMerkleRoot(ctx)
}

type agentInfoInput struct {
	Address string `json:"address"`
}

// AgentInfoResult reports a registry lookup. Agent is nil when unregistered.
type AgentInfoResult struct {
	Address    string            `json:"address"`
	Registered bool              `json:"registered"`
	Agent      *domain.AgentInfo `json:"agent,omitempty"`
}

func (h *chainHandlers) AgentInfo(ctx context.Context, input json.RawMessage) (any, error) {
	var in agentInfoInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	c, err := h.client()
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		address = h.b.CurrentAddress()
	}
	if address == "" {
		return nil, invalidArgument("address is required when the agent has no identity")
	}

	info, err := c.GetAgent(ctx, address)
	if err != nil {
		return nil, err
	}
	return AgentInfoResult{Address: address, Registered: info != nil, Agent: info}, nil
}

func (h *chainHandlers) Heartbeat(ctx context.Context, input json.RawMessage) (any, error) {
	return h.b.Heartbeat(ctx), nil
}

type observedEventsInput struct {
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
}

func (h *chainHandlers) ObservedEvents(ctx context.Context, input json.RawMessage) (any, error) {
	var in observedEventsInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}

	kind := domain.EventKind(strings.TrimSpace(in.Kind))
	switch kind {
	case "", domain.EventKindCommitmentObserved, domain.EventKindAgentRegistered:
	default:
		return nil, invalidArgument("unknown event kind %q", in.Kind)
	}
	limit := in.Limit
	switch {
	case limit < 0 || limit > maxEventLimit:
		return nil, invalidArgument("limit must be between 1 and %d", maxEventLimit)
	case limit == 0:
		limit = defaultEventLimit
	}

	journal := h.b.Journal()
	if journal == nil {
		return nil, notInitialized("event journal")
	}
	events, err := journal.List(ctx, kind, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return map[string]any{"events": events, "count": len(events)}, nil
}

// Transaction handlers

type shieldInput struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

func (h *chainHandlers) Shield(ctx context.Context, input json.RawMessage) (any, error) {
	var in shieldInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	amount, err := validateAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	a, err := h.agent()
	if err != nil {
		return nil, err
	}

	denom := strings.TrimSpace(in.Denom)
	if denom == "" {
		denom = h.b.Denom()
	}
	result, err := a.ShieldTokens(ctx, amount, denom)
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, txFailed("shield", result)
	}
	return result, nil
}

type transferInput struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (h *chainHandlers) Unshield(ctx context.Context, input json.RawMessage) (any, error) {
	var in transferInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	amount, err := validateAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	a, err := h.agent()
	if err != nil {
		return nil, err
	}

	result, err := a.UnshieldTokens(ctx, amount, strings.TrimSpace(in.Recipient))
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, txFailed("unshield", result)
	}
	return result, nil
}

func (h *chainHandlers) PrivateTransfer(ctx context.Context, input json.RawMessage) (any, error) {
	var in transferInput
	if err := decode(input, &in); err != nil {
		return nil, err
	}
	if _, err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Recipient) == "" {
		return nil, invalidArgument("recipient is required")
	}
	return nil, &ToolError{
		Code:    CodeNotImplemented,
		Message: "private transfers are not supported yet; unshield and send instead",
	}
}

func (h *chainHandlers) Register(ctx context.Context, input json.RawMessage) (any, error) {
	if _, err := h.agent(); err != nil {
		return nil, err
	}
	return h.b.Rebootstrap(ctx)
}

// validateAmount returns the trimmed amount when it is a positive integer in base units.
func validateAmount(amount string) (string, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "", invalidArgument("amount is required")
	}
	if !amountPattern.MatchString(amount) || strings.Trim(amount, "0") == "" {
		return "", invalidArgument("amount must be a positive integer in base units, got %q", amount)
	}
	return amount, nil
}
