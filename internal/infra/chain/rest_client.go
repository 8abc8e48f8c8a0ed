package chain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/rpc/provider"
	"github.com/vietddude/zkagent/internal/infra/rpc/routing"
)

// RESTClient implements Client against the node's RPC (/status) and REST (LCD) endpoints.
// Queries are read-only, so transient failures are retried.
type RESTClient struct {
	rpc   *provider.HTTPProvider
	rest  *provider.HTTPProvider
	retry routing.RetryConfig
}

// NewRESTClient creates a client. restURL falls back to rpcURL when empty.
func NewRESTClient(rpcURL, restURL string, timeout time.Duration) *RESTClient {
	if restURL == "" {
		restURL = rpcURL
	}
	return &RESTClient{
		rpc:   provider.NewHTTPProvider("rpc", rpcURL, timeout),
		rest:  provider.NewHTTPProvider("rest", restURL, timeout),
		retry: routing.DefaultRetryConfig,
	}
}

// WithRetry replaces the retry policy. It returns c for chaining.
func (c *RESTClient) WithRetry(cfg routing.RetryConfig) *RESTClient {
	c.retry = cfg
	return c
}

func (c *RESTClient) get(ctx context.Context, p *provider.HTTPProvider, path string, query url.Values, out any) error {
	return routing.Do(ctx, c.retry, func(ctx context.Context) error {
		return p.Get(ctx, path, query, out)
	})
}

// Providers exposes the underlying providers for health reporting.
func (c *RESTClient) Providers() []provider.Provider {
	return []provider.Provider{c.rpc, c.rest}
}

// Close releases idle connections.
func (c *RESTClient) Close() error {
	return errors.Join(c.rpc.Close(), c.rest.Close())
}

type statusResponse struct {
	Result struct {
		NodeInfo struct {
			Network string `json:"network"`
			Version string `json:"version"`
		} `json:"node_info"`
		SyncInfo struct {
			LatestBlockHeight string    `json:"latest_block_height"`
			LatestBlockTime   time.Time `json:"latest_block_time"`
			CatchingUp        bool      `json:"catching_up"`
		} `json:"sync_info"`
	} `json:"result"`
}

// GetStatus returns the node's network and sync status.
func (c *RESTClient) GetStatus(ctx context.Context) (*domain.ChainStatus, error) {
	var resp statusResponse
	if err := c.get(ctx, c.rpc, "status", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	height, err := parseInt64(resp.Result.SyncInfo.LatestBlockHeight)
	if err != nil {
		return nil, fmt.Errorf("invalid latest_block_height: %w", err)
	}

	return &domain.ChainStatus{
		Network:           resp.Result.NodeInfo.Network,
		NodeVersion:       resp.Result.NodeInfo.Version,
		LatestBlockHeight: height,
		LatestBlockTime:   resp.Result.SyncInfo.LatestBlockTime,
		CatchingUp:        resp.Result.SyncInfo.CatchingUp,
	}, nil
}

// GetBalance returns the transparent balance of address in denom.
func (c *RESTClient) GetBalance(ctx context.Context, address, denom string) (*domain.Coin, error) {
	var resp struct {
		Balance domain.Coin `json:"balance"`
	}
	path := "cosmos/bank/v1beta1/balances/" + url.PathEscape(address) + "/by_denom"
	if err := c.get(ctx, c.rest, path, url.Values{"denom": {denom}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to get balance for %s: %w", address, err)
	}

	// The bank module omits zero balances.
	if resp.Balance.Denom == "" {
		resp.Balance.Denom = denom
	}
	if resp.Balance.Amount == "" {
		resp.Balance.Amount = "0"
	}
	return &resp.Balance, nil
}

// GetMerkleRoot returns the current shielded commitment tree root.
func (c *RESTClient) GetMerkleRoot(ctx context.Context) (*domain.MerkleRoot, error) {
	var resp struct {
		Root      string `json:"root"`
		LeafCount string `json:"leaf_count"`
		Height    string `json:"height"`
	}
	if err := c.get(ctx, c.rest, "zkagent/shielded/v1/merkle_root", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get merkle root: %w", err)
	}

	leafCount, err := parseInt64(resp.LeafCount)
	if err != nil {
		return nil, fmt.Errorf("invalid leaf_count: %w", err)
	}
	height, err := parseInt64(resp.Height)
	if err != nil {
		return nil, fmt.Errorf("invalid height: %w", err)
	}

	return &domain.MerkleRoot{Root: resp.Root, LeafCount: leafCount, Height: height}, nil
}

// GetAgent returns the registry record for address, or nil when it is not registered.
func (c *RESTClient) GetAgent(ctx context.Context, address string) (*domain.AgentInfo, error) {
	var resp struct {
		Agent *struct {
			Address      string `json:"address"`
			Name         string `json:"name"`
			RegisteredAt string `json:"registered_at"`
			Active       bool   `json:"active"`
		} `json:"agent"`
	}
	path := "zkagent/agents/v1/agents/" + url.PathEscape(address)
	if err := c.get(ctx, c.rest, path, nil, &resp); err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent %s: %w", address, err)
	}
	if resp.Agent == nil {
		return nil, nil
	}

	registeredAt, err := parseInt64(resp.Agent.RegisteredAt)
	if err != nil {
		return nil, fmt.Errorf("invalid registered_at: %w", err)
	}

	return &domain.AgentInfo{
		Address:      resp.Agent.Address,
		Name:         resp.Agent.Name,
		RegisteredAt: registeredAt,
		Active:       resp.Agent.Active,
	}, nil
}

// parseInt64 parses a proto-JSON int64 string; empty means zero.
func parseInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
