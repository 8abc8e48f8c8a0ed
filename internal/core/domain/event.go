package domain

import "time"

// UnknownLeafIndex marks a commitment whose leaf index was absent or not numeric.
const UnknownLeafIndex int64 = -1

// UnknownAgentName is used when a registration event carries no name.
const UnknownAgentName = "unknown"

// EventKind identifies the variant carried by an Event.
type EventKind string

const (
	EventKindCommitmentObserved EventKind = "commitment_observed"
	EventKindAgentRegistered    EventKind = "agent_registered"
)

// CommitmentObserved is emitted for every shield commitment seen on the stream.
type CommitmentObserved struct {
	CommitmentID string    `json:"commitment_id"`
	LeafIndex    int64     `json:"leaf_index"`
	ObservedAt   time.Time `json:"observed_at"`
}

// HasLeafIndex reports whether the node supplied a usable leaf index.
func (c CommitmentObserved) HasLeafIndex() bool {
	return c.LeafIndex != UnknownLeafIndex
}

// AgentRegistered is emitted for every agent registration seen on the stream.
type AgentRegistered struct {
	Address    string    `json:"address"`
	Name       string    `json:"name"`
	ObservedAt time.Time `json:"observed_at"`
}

// Event wraps one domain event for emitters and the journal.
// Exactly one of Commitment or Registration is set, matching Kind.
type Event struct {
	Kind         EventKind           `json:"kind"`
	Commitment   *CommitmentObserved `json:"commitment,omitempty"`
	Registration *AgentRegistered    `json:"registration,omitempty"`
}

// NewCommitmentEvent wraps a CommitmentObserved.
func NewCommitmentEvent(c CommitmentObserved) *Event {
	return &Event{Kind: EventKindCommitmentObserved, Commitment: &c}
}

// NewRegistrationEvent wraps an AgentRegistered.
func NewRegistrationEvent(r AgentRegistered) *Event {
	return &Event{Kind: EventKindAgentRegistered, Registration: &r}
}
