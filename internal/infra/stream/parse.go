package stream

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/vietddude/zkagent/internal/core/domain"
)

// Subscription queries sent on every (re)connect, in this order.
const (
	QueryShieldCommitments  = "tm.event='Tx' AND shield.commitment EXISTS"
	QueryAgentRegistrations = "tm.event='Tx' AND agent_register.address EXISTS"
)

// Event attribute keys in result.events.
const (
	KeyShieldCommitment     = "shield.commitment"
	KeyShieldLeafIndex      = "shield.leaf_index"
	KeyAgentRegisterAddress = "agent_register.address"
	KeyAgentRegisterName    = "agent_register.name"
)

type subscribeRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  subscribeParams `json:"params"`
}

type subscribeParams struct {
	Query string `json:"query"`
}

type frame struct {
	Result *struct {
		Events map[string][]string `json:"events"`
	} `json:"result"`
}

// Parsed holds the domain events carried by one frame.
type Parsed struct {
	Commitments   []domain.CommitmentObserved
	Registrations []domain.AgentRegistered
}

// Len returns the number of events in p.
func (p Parsed) Len() int {
	return len(p.Commitments) + len(p.Registrations)
}

// ParseFrame extracts domain events from a raw stream frame. Frames without
// result.events (subscription acks, heartbeats) yield no events and no error.
func ParseFrame(data []byte, now time.Time) (Parsed, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Parsed{}, err
	}
	if f.Result == nil || len(f.Result.Events) == 0 {
		return Parsed{}, nil
	}
	events := f.Result.Events

	var out Parsed
	leafIndexes := events[KeyShieldLeafIndex]
	for i, id := range events[KeyShieldCommitment] {
		leaf := domain.UnknownLeafIndex
		if i < len(leafIndexes) {
			leaf = parseLeafIndex(leafIndexes[i])
		}
		out.Commitments = append(out.Commitments, domain.CommitmentObserved{
			CommitmentID: id,
			LeafIndex:    leaf,
			ObservedAt:   now,
		})
	}

	names := events[KeyAgentRegisterName]
	for i, address := range events[KeyAgentRegisterAddress] {
		name := domain.UnknownAgentName
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		out.Registrations = append(out.Registrations, domain.AgentRegistered{
			Address:    address,
			Name:       name,
			ObservedAt: now,
		})
	}
	return out, nil
}

func parseLeafIndex(s string) int64 {
	v, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return domain.UnknownLeafIndex
	}
	return int64(v)
}
