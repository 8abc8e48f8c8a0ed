package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/storage"
)

// EventRepo implements storage.EventRepository using PostgreSQL.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new PostgreSQL event journal.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

type eventRow struct {
	ID           string         `db:"id"`
	Kind         string         `db:"kind"`
	CommitmentID sql.NullString `db:"commitment_id"`
	LeafIndex    sql.NullInt64  `db:"leaf_index"`
	Address      sql.NullString `db:"address"`
	Name         sql.NullString `db:"name"`
	ObservedAt   time.Time      `db:"observed_at"`
}

func (row eventRow) toDomain() *domain.Event {
	switch domain.EventKind(row.Kind) {
	case domain.EventKindCommitmentObserved:
		leaf := domain.UnknownLeafIndex
		if row.LeafIndex.Valid {
			leaf = row.LeafIndex.Int64
		}
		return domain.NewCommitmentEvent(domain.CommitmentObserved{
			CommitmentID: row.CommitmentID.String,
			LeafIndex:    leaf,
			ObservedAt:   row.ObservedAt,
		})
	case domain.EventKindAgentRegistered:
		return domain.NewRegistrationEvent(domain.AgentRegistered{
			Address:    row.Address.String,
			Name:       row.Name.String,
			ObservedAt: row.ObservedAt,
		})
	}
	return nil
}

// Save appends an event to the journal.
func (r *EventRepo) Save(ctx context.Context, event *domain.Event) error {
	if err := storage.Validate(event); err != nil {
		return err
	}

	row := eventRow{ID: uuid.NewString(), Kind: string(event.Kind)}
	switch event.Kind {
	case domain.EventKindCommitmentObserved:
		c := event.Commitment
		row.CommitmentID = sql.NullString{String: c.CommitmentID, Valid: true}
		row.LeafIndex = sql.NullInt64{Int64: c.LeafIndex, Valid: c.HasLeafIndex()}
		row.ObservedAt = c.ObservedAt
	case domain.EventKindAgentRegistered:
		a := event.Registration
		row.Address = sql.NullString{String: a.Address, Valid: true}
		row.Name = sql.NullString{String: a.Name, Valid: true}
		row.ObservedAt = a.ObservedAt
	}
	if row.ObservedAt.IsZero() {
		row.ObservedAt = time.Now()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO chain_events (id, kind, commitment_id, leaf_index, address, name, observed_at)
		VALUES (:id, :kind, :commitment_id, :leaf_index, :address, :name, :observed_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// List returns up to limit events of kind, newest first.
func (r *EventRepo) List(
	ctx context.Context,
	kind domain.EventKind,
	limit int,
) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []eventRow
	var err error
	if kind == "" {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT id, kind, commitment_id, leaf_index, address, name, observed_at
			FROM chain_events ORDER BY observed_at DESC LIMIT $1`, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT id, kind, commitment_id, leaf_index, address, name, observed_at
			FROM chain_events WHERE kind = $1 ORDER BY observed_at DESC LIMIT $2`, string(kind), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*domain.Event, 0, len(rows))
	for _, row := range rows {
		if ev := row.toDomain(); ev != nil {
			events = append(events, ev)
		}
	}
	return events, nil
}

// Count returns the number of journaled events of kind.
func (r *EventRepo) Count(ctx context.Context, kind domain.EventKind) (int, error) {
	var count int
	var err error
	if kind == "" {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chain_events`)
	} else {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chain_events WHERE kind = $1`, string(kind))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
