package storage

import (
	"context"
	"errors"

	"github.com/vietddude/zkagent/internal/core/domain"
)

var (
	// ErrInvalidEvent is returned when an event's payload does not match its kind
	ErrInvalidEvent = errors.New("invalid event")
)

// EventRepository journals domain events observed on the node stream.
// The journal only holds what was seen; events missed during a disconnect are never backfilled.
type EventRepository interface {
	// Save appends an event
	Save(ctx context.Context, event *domain.Event) error

	// List returns up to limit events of kind, newest first. Empty kind lists all kinds.
	List(ctx context.Context, kind domain.EventKind, limit int) ([]*domain.Event, error)

	// Count returns the number of journaled events of kind. Empty kind counts all kinds.
	Count(ctx context.Context, kind domain.EventKind) (int, error)
}

// Validate checks that exactly the payload matching Kind is set.
func Validate(event *domain.Event) error {
	if event == nil {
		return ErrInvalidEvent
	}
	switch event.Kind {
	case domain.EventKindCommitmentObserved:
		if event.Commitment == nil || event.Registration != nil {
			return ErrInvalidEvent
		}
	case domain.EventKindAgentRegistered:
		if event.Registration == nil || event.Commitment != nil {
			return ErrInvalidEvent
		}
	default:
		return ErrInvalidEvent
	}
	return nil
}
