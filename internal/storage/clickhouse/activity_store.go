package clickhouse

import (
	"context"
	"fmt"
	"time"

	"fracpool/internal/domain"
	"fracpool/internal/storage"
)

// ActivityStore implements storage.ActivityStore using ClickHouse.
// pool_activity is a MergeTree table: append-only, no uniqueness enforced,
// which matches the audit-log contract.
type ActivityStore struct {
	conn *Conn
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(conn *Conn) *ActivityStore {
	return &ActivityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Append stores one audit event.
func (s *ActivityStore) Append(ctx context.Context, e *domain.ActivityEvent) error {
	if e == nil || e.EventID == "" || e.PoolID == "" {
		return storage.ErrInvalidInput
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO pool_activity (
			event_id, pool_id, proposal_id, kind, actor, detail, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		e.EventID, e.PoolID, e.ProposalID,
		string(e.Kind), e.Actor, e.Detail, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

// GetByPool retrieves all events for a pool, ordered by occurrence ASC.
func (s *ActivityStore) GetByPool(ctx context.Context, poolID string) ([]*domain.ActivityEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT event_id, pool_id, proposal_id, kind, actor, detail, occurred_at
		FROM pool_activity
		WHERE pool_id = $1
		ORDER BY occurred_at ASC, event_id ASC
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("query activity events: %w", err)
	}
	defer rows.Close()

	var events []*domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var kind string
		var occurredAt time.Time

		if err := rows.Scan(&e.EventID, &e.PoolID, &e.ProposalID, &kind, &e.Actor, &e.Detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		e.Kind = domain.ActivityKind(kind)
		e.OccurredAt = occurredAt
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return events, nil
}
