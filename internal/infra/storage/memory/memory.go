package memory

import (
	"context"
	"sync"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/storage"
)

// EventRepo is an in-process event journal.
type EventRepo struct {
	mu     sync.RWMutex
	events []*domain.Event
}

func NewEventRepo() *EventRepo {
	return &EventRepo{}
}

func (r *EventRepo) Save(ctx context.Context, event *domain.Event) error {
	if err := storage.Validate(event); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *EventRepo) List(
	ctx context.Context,
	kind domain.EventKind,
	limit int,
) ([]*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Event
	for i := len(r.events) - 1; i >= 0; i-- {
		ev := r.events[i]
		if kind != "" && ev.Kind != kind {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *EventRepo) Count(ctx context.Context, kind domain.EventKind) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if kind == "" {
		return len(r.events), nil
	}
	count := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			count++
		}
	}
	return count, nil
}
