package domain

import "time"

// ChainStatus summarizes a node's /status response.
type ChainStatus struct {
	Network           string    `json:"network"`
	NodeVersion       string    `json:"node_version,omitempty"`
	LatestBlockHeight int64     `json:"latest_block_height"`
	LatestBlockTime   time.Time `json:"latest_block_time"`
	CatchingUp        bool      `json:"catching_up"`
}

// Coin is an amount of a single denomination. Amount stays a decimal string
// because on-chain integers can exceed int64.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// MerkleRoot is the current root of the shielded commitment tree.
type MerkleRoot struct {
	Root      string `json:"root"`
	LeafCount int64  `json:"leaf_count"`
	Height    int64  `json:"height,omitempty"`
}

// AgentInfo is an agent record as stored by the chain's agent registry.
type AgentInfo struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	RegisteredAt int64  `json:"registered_at,omitempty"`
	Active       bool   `json:"active"`
}

// ShieldedBalance is the private balance tracked by the prover from owned commitments.
type ShieldedBalance struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
	Notes  int    `json:"notes"`
}

// Commitment is one shielded note owned by the agent.
type Commitment struct {
	Commitment string `json:"commitment"`
	LeafIndex  int64  `json:"leaf_index"`
	Amount     string `json:"amount"`
	Denom      string `json:"denom"`
	Spent      bool   `json:"spent"`
}

// TxResult is the acknowledgment of a broadcast transaction.
type TxResult struct {
	Code   uint32 `json:"code"`
	TxHash string `json:"txhash"`
	RawLog string `json:"raw_log,omitempty"`
	Height int64  `json:"height,omitempty"`
}

// OK reports whether the chain accepted the transaction.
func (r TxResult) OK() bool {
	return r.Code == 0
}
