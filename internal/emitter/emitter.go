// Package emitter fans observed chain events out to logs, Redis and the event journal.
package emitter

import (
	"context"
	"errors"

	"github.com/vietddude/zkagent/internal/core/domain"
)

// Emitter defines the interface for emitting chain events
type Emitter interface {
	// Emit sends a single event
	Emit(ctx context.Context, event *domain.Event) error

	// EmitBatch sends multiple events in order
	EmitBatch(ctx context.Context, events []*domain.Event) error

	// Close releases the emitter's resources
	Close() error
}

// Multi emits every event to all of its emitters. A failing emitter does
// not stop the others; their errors are joined.
type Multi struct {
	emitters []Emitter
}

// NewMulti creates a fan-out emitter. Nil emitters are skipped.
func NewMulti(emitters ...Emitter) *Multi {
	m := &Multi{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Len returns the number of wrapped emitters.
func (m *Multi) Len() int {
	return len(m.emitters)
}

func (m *Multi) Emit(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) EmitBatch(ctx context.Context, events []*domain.Event) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.EmitBatch(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// emitEach implements EmitBatch on top of Emit.
func emitEach(ctx context.Context, e Emitter, events []*domain.Event) error {
	for _, event := range events {
		if err := e.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
