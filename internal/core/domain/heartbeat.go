package domain

import "time"

// HeartbeatResult is a point-in-time liveness snapshot of a node.
// Height is nil when the node did not report one.
type HeartbeatResult struct {
	Alive     bool      `json:"alive"`
	Height    *int64    `json:"height,omitempty"`
	Error     string    `json:"error,omitempty"`
	NodeURL   string    `json:"node_url"`
	CheckedAt time.Time `json:"checked_at"`
}
