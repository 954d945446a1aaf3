package repository

import (
	"context"
	"database/sql"

	"shiftwise/backend/internal/audit/domain"
	"shiftwise/backend/internal/db"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit event repository that uses the given db for persistence.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// Create persists the audit event. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	meta := sql.NullString{String: e.Metadata, Valid: e.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, entity_type, entity_id, action, actor, severity, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.EntityType, e.EntityID, e.Action, e.Actor, e.Severity, meta, e.CreatedAt)
	return db.Unavailable(err)
}

// ListByEntity returns the most recent events for one entity, newest first.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int32) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*domain.Event
	err := db.WithReadRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx,
			`SELECT id, entity_type, entity_id, action, actor, severity, metadata, created_at
			 FROM audit_events WHERE entity_type = $1 AND entity_id = $2
			 ORDER BY created_at DESC LIMIT $3`,
			entityType, entityID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var e domain.Event
			var meta sql.NullString
			if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.Actor, &e.Severity, &meta, &e.CreatedAt); err != nil {
				return err
			}
			e.Metadata = meta.String
			out = append(out, &e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
