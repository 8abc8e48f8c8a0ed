package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/storage"
)

func TestEventRepo_ListNewestFirst(t *testing.T) {
	repo := NewEventRepo()
	ctx := context.Background()
	now := time.Now()

	for i, id := range []string{"c1", "c2", "c3"} {
		ev := domain.NewCommitmentEvent(domain.CommitmentObserved{
			CommitmentID: id,
			LeafIndex:    int64(i),
			ObservedAt:   now.Add(time.Duration(i) * time.Second),
		})
		if err := repo.Save(ctx, ev); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := repo.Save(ctx, domain.NewRegistrationEvent(domain.AgentRegistered{
		Address: "agent1xyz",
		Name:    "alice",
	})); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	commitments, err := repo.List(ctx, domain.EventKindCommitmentObserved, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(commitments) != 2 {
		t.Fatalf("expected 2 commitments, got %d", len(commitments))
	}
	if commitments[0].Commitment.CommitmentID != "c3" || commitments[1].Commitment.CommitmentID != "c2" {
		t.Errorf("expected newest first, got %s, %s",
			commitments[0].Commitment.CommitmentID, commitments[1].Commitment.CommitmentID)
	}

	total, _ := repo.Count(ctx, "")
	if total != 4 {
		t.Errorf("expected 4 events, got %d", total)
	}
	regs, _ := repo.Count(ctx, domain.EventKindAgentRegistered)
	if regs != 1 {
		t.Errorf("expected 1 registration, got %d", regs)
	}
}

func TestEventRepo_RejectsMismatchedPayload(t *testing.T) {
	repo := NewEventRepo()
	bad := &domain.Event{Kind: domain.EventKindAgentRegistered}

	err := repo.Save(context.Background(), bad)
	if !errors.Is(err, storage.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}
