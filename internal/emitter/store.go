package emitter

import (
	"context"
	"fmt"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/storage"
)

// StoreEmitter journals events in an EventRepository.
type StoreEmitter struct {
	repo storage.EventRepository
}

// NewStoreEmitter creates a journaling emitter.
func NewStoreEmitter(repo storage.EventRepository) *StoreEmitter {
	return &StoreEmitter{repo: repo}
}

func (s *StoreEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if err := s.repo.Save(ctx, event); err != nil {
		return fmt.Errorf("journal %s: %w", event.Kind, err)
	}
	return nil
}

func (s *StoreEmitter) EmitBatch(ctx context.Context, events []*domain.Event) error {
	return emitEach(ctx, s, events)
}

// Close is a no-op; the repository's owner closes it.
func (s *StoreEmitter) Close() error {
	return nil
}
