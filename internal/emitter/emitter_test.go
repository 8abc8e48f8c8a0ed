package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/storage"
	"github.com/vietddude/zkagent/internal/infra/storage/memory"
)

type fakePublisher struct {
	err      error
	channels []string
	payloads [][]byte
	closed   bool
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
	return 1, nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type failingEmitter struct{ calls int }

func (f *failingEmitter) Emit(ctx context.Context, event *domain.Event) error {
	f.calls++
	return errors.New("boom")
}
func (f *failingEmitter) EmitBatch(ctx context.Context, events []*domain.Event) error {
	return emitEach(ctx, f, events)
}
func (f *failingEmitter) Close() error { return errors.New("close boom") }

func commitment(id string, leaf int64) *domain.Event {
	return domain.NewCommitmentEvent(domain.CommitmentObserved{
		CommitmentID: id,
		LeafIndex:    leaf,
		ObservedAt:   time.Unix(1700000000, 0).UTC(),
	})
}

func TestRedisEmitter_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	e := NewRedisEmitter(pub, "zkagent:events")

	require.NoError(t, e.Emit(context.Background(), commitment("abc123", 4)))
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "zkagent:events", pub.channels[0])

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, domain.EventKindCommitmentObserved, decoded.Kind)
	require.NotNil(t, decoded.Commitment)
	assert.Equal(t, "abc123", decoded.Commitment.CommitmentID)
	assert.Equal(t, int64(4), decoded.Commitment.LeafIndex)
	assert.Nil(t, decoded.Registration)

	require.NoError(t, e.Close())
	assert.True(t, pub.closed)
}

func TestRedisEmitter_WrapsPublishError(t *testing.T) {
	e := NewRedisEmitter(&fakePublisher{err: errors.New("connection refused")}, "ch")
	err := e.Emit(context.Background(), commitment("c", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStoreEmitter_Journals(t *testing.T) {
	repo := memory.NewEventRepo()
	e := NewStoreEmitter(repo)

	events := []*domain.Event{
		commitment("c1", 1),
		domain.NewRegistrationEvent(domain.AgentRegistered{Address: "agent1a", Name: "alpha"}),
		commitment("c2", 2),
	}
	require.NoError(t, e.EmitBatch(context.Background(), events))

	count, err := repo.Count(context.Background(), domain.EventKindCommitmentObserved)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = e.Emit(context.Background(), &domain.Event{Kind: domain.EventKindAgentRegistered})
	assert.ErrorIs(t, err, storage.ErrInvalidEvent)
}

func TestLogEmitter_WritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	e := NewLogEmitter(logger)

	require.NoError(t, e.Emit(context.Background(), commitment("c9", domain.UnknownLeafIndex)))
	require.NoError(t, e.Emit(context.Background(),
		domain.NewRegistrationEvent(domain.AgentRegistered{Address: "agent1z", Name: "zed"})))

	out := buf.String()
	assert.Contains(t, out, `"commitment":"c9"`)
	assert.Contains(t, out, `"leaf_index":"unknown"`)
	assert.Contains(t, out, `"address":"agent1z"`)
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	failing := &failingEmitter{}
	repo := memory.NewEventRepo()
	m := NewMulti(failing, nil, NewStoreEmitter(repo))
	assert.Equal(t, 2, m.Len())

	err := m.Emit(context.Background(), commitment("c1", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, failing.calls)

	count, err := repo.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "healthy emitters still receive the event")

	assert.Error(t, m.Close())
}
