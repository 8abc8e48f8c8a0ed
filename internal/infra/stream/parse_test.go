package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/zkagent/internal/core/domain"
)

func TestParseFrame_Commitments(t *testing.T) {
	now := time.Unix(1700000000, 0)
	data := []byte(`{"jsonrpc":"2.0","id":1,"result":{"query":"q","events":{
		"tm.event":["Tx"],
		"shield.commitment":["c1","c2","c3"],
		"shield.leaf_index":["7","x"]}}}`)

	parsed, err := ParseFrame(data, now)
	require.NoError(t, err)
	require.Len(t, parsed.Commitments, 3)
	assert.Empty(t, parsed.Registrations)

	assert.Equal(t, domain.CommitmentObserved{CommitmentID: "c1", LeafIndex: 7, ObservedAt: now}, parsed.Commitments[0])
	assert.Equal(t, "c2", parsed.Commitments[1].CommitmentID)
	assert.Equal(t, domain.UnknownLeafIndex, parsed.Commitments[1].LeafIndex)
	assert.Equal(t, "c3", parsed.Commitments[2].CommitmentID)
	assert.False(t, parsed.Commitments[2].HasLeafIndex())
}

func TestParseFrame_LeafIndexMustBeNonNegativeInteger(t *testing.T) {
	cases := map[string]int64{
		"0":                    0,
		"42":                   42,
		"-1":                   domain.UnknownLeafIndex,
		"+3":                   domain.UnknownLeafIndex,
		"1.5":                  domain.UnknownLeafIndex,
		"":                     domain.UnknownLeafIndex,
		"99999999999999999999": domain.UnknownLeafIndex,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLeafIndex(in), "input %q", in)
	}
}

func TestParseFrame_Registrations(t *testing.T) {
	data := []byte(`{"result":{"events":{
		"agent_register.address":["agent1a","agent1b"],
		"agent_register.name":["alpha"]}}}`)

	parsed, err := ParseFrame(data, time.Now())
	require.NoError(t, err)
	require.Len(t, parsed.Registrations, 2)
	assert.Equal(t, "agent1a", parsed.Registrations[0].Address)
	assert.Equal(t, "alpha", parsed.Registrations[0].Name)
	assert.Equal(t, "agent1b", parsed.Registrations[1].Address)
	assert.Equal(t, domain.UnknownAgentName, parsed.Registrations[1].Name)
}

func TestParseFrame_MixedFrameYieldsBothKinds(t *testing.T) {
	data := []byte(`{"result":{"events":{
		"agent_register.address":["agent1a"],
		"shield.commitment":["c1"],
		"shield.leaf_index":["1"]}}}`)

	parsed, err := ParseFrame(data, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.Len())
	assert.Len(t, parsed.Commitments, 1)
	assert.Len(t, parsed.Registrations, 1)
}

func TestParseFrame_NoEvents(t *testing.T) {
	for _, data := range []string{
		`{"jsonrpc":"2.0","id":1,"result":{}}`,
		`{"jsonrpc":"2.0","id":1}`,
		`{"result":{"events":{"tm.event":["NewBlock"]}}}`,
	} {
		parsed, err := ParseFrame([]byte(data), time.Now())
		require.NoError(t, err, data)
		assert.Zero(t, parsed.Len(), data)
	}
}

func TestParseFrame_Malformed(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`{"result":{"events":{"shield.commitment":"c1"}}}`,
		`{"result":"oops"}`,
	} {
		_, err := ParseFrame([]byte(data), time.Now())
		assert.Error(t, err, data)
	}
}

func TestBuildURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:26657":        "ws://localhost:26657/websocket",
		"https://rpc.example.com/":      "wss://rpc.example.com/websocket",
		"ws://10.0.0.1:26657":           "ws://10.0.0.1:26657/websocket",
		"wss://rpc.example.com/node/a/": "wss://rpc.example.com/node/a/websocket",
	}
	for in, want := range cases {
		got, err := BuildURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := BuildURL("ftp://localhost")
	assert.Error(t, err)
	_, err = BuildURL("localhost:26657")
	assert.Error(t, err)
}
