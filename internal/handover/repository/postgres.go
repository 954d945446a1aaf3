package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"shiftwise/backend/internal/db"
	"shiftwise/backend/internal/handover/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a handover repository that uses the given db for persistence.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

const handoverColumns = `id, from_user_id, to_user_id, status, notes, reject_reason,
	payload, created_at, expires_at, resolved_at`

// GetByID returns the handover for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Handover, error) {
	var h *domain.Handover
	err := db.WithReadRetry(ctx, func() error {
		row := r.db.QueryRowContext(ctx,
			`SELECT `+handoverColumns+` FROM handovers WHERE id = $1`, id)
		var err error
		h, err = scanHandover(row.Scan)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// Create persists the handover. The handover must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, h *domain.Handover) error {
	payload, err := json.Marshal(h.Payload)
	if err != nil {
		return err
	}
	reason := sql.NullString{String: h.RejectReason, Valid: h.RejectReason != ""}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO handovers (id, from_user_id, to_user_id, status, notes, reject_reason,
			payload, created_at, expires_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		h.ID, h.FromUserID, h.ToUserID, h.Status, h.Notes, reason,
		payload, h.CreatedAt, h.ExpiresAt, timeToNullTime(h.ResolvedAt))
	return db.Unavailable(err)
}

// ListPendingExpiredBefore returns pending handovers whose expiry predates t, oldest first.
func (r *PostgresRepository) ListPendingExpiredBefore(ctx context.Context, t time.Time, limit int32) ([]*domain.Handover, error) {
	if limit <= 0 {
		limit = 200
	}
	var out []*domain.Handover
	err := db.WithReadRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx,
			`SELECT `+handoverColumns+` FROM handovers
			 WHERE status = $1 AND expires_at < $2
			 ORDER BY expires_at LIMIT $3`,
			domain.StatusPending, t, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			h, err := scanHandover(rows.Scan)
			if err != nil {
				return err
			}
			out = append(out, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete transitions pending -> completed.
func (r *PostgresRepository) Complete(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE handovers SET status = $3, resolved_at = $4 WHERE id = $1 AND status = $2`,
		id, domain.StatusPending, domain.StatusCompleted, at)
	return oneRow(res, err)
}

// Reject transitions pending -> rejected with the given reason.
func (r *PostgresRepository) Reject(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE handovers SET status = $3, reject_reason = $4, resolved_at = $5 WHERE id = $1 AND status = $2`,
		id, domain.StatusPending, domain.StatusRejected, reason, at)
	return oneRow(res, err)
}

func scanHandover(scan func(dest ...any) error) (*domain.Handover, error) {
	var h domain.Handover
	var reason sql.NullString
	var payload []byte
	var resolvedAt sql.NullTime
	if err := scan(&h.ID, &h.FromUserID, &h.ToUserID, &h.Status, &h.Notes, &reason,
		&payload, &h.CreatedAt, &h.ExpiresAt, &resolvedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &h.Payload); err != nil {
		return nil, err
	}
	h.RejectReason = reason.String
	h.ResolvedAt = nullTimeToPtr(resolvedAt)
	return &h, nil
}

func oneRow(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, db.Unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, db.Unavailable(err)
	}
	return n == 1, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
