package emitter

import (
	"context"
	"log/slog"

	"github.com/vietddude/zkagent/internal/core/domain"
)

// LogEmitter writes events to a structured logger.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a log emitter. A nil logger uses slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger.With("component", "events")}
}

func (l *LogEmitter) Emit(ctx context.Context, event *domain.Event) error {
	switch event.Kind {
	case domain.EventKindCommitmentObserved:
		c := event.Commitment
		attrs := []any{"commitment", c.CommitmentID}
		if c.HasLeafIndex() {
			attrs = append(attrs, "leaf_index", c.LeafIndex)
		} else {
			attrs = append(attrs, "leaf_index", "unknown")
		}
		l.logger.InfoContext(ctx, "Commitment observed", attrs...)
	case domain.EventKindAgentRegistered:
		r := event.Registration
		l.logger.InfoContext(ctx, "Agent registered", "address", r.Address, "name", r.Name)
	default:
		l.logger.WarnContext(ctx, "Unknown event kind", "kind", event.Kind)
	}
	return nil
}

func (l *LogEmitter) EmitBatch(ctx context.Context, events []*domain.Event) error {
	return emitEach(ctx, l, events)
}

func (l *LogEmitter) Close() error {
	return nil
}
