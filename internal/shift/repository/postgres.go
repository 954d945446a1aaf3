package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"shiftwise/backend/internal/db"
	"shiftwise/backend/internal/shift/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a shift repository that uses the given db for persistence.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

const shiftColumns = `id, user_id, user_name, user_role, status, end_reason,
	started_at, ended_at, paused_at, break_seconds,
	orders_handled, revenue_cents, tables_served, avg_service_secs, error_count`

// GetByID returns the shift for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Shift, error) {
	return r.one(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id)
}

// GetOpenByUser returns the user's active or paused shift, or nil.
func (r *PostgresRepository) GetOpenByUser(ctx context.Context, userID string) (*domain.Shift, error) {
	return r.one(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE user_id = $1 AND status IN ($2, $3)`,
		userID, domain.StatusActive, domain.StatusPaused)
}

// Create persists the shift. The shift must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Shift) error {
	reason := sql.NullString{String: string(s.EndReason), Valid: s.EndReason != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shifts (id, user_id, user_name, user_role, status, end_reason,
			started_at, ended_at, paused_at, break_seconds,
			orders_handled, revenue_cents, tables_served, avg_service_secs, error_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.UserID, s.UserName, s.UserRole, s.Status, reason,
		s.StartedAt, timeToNullTime(s.EndedAt), timeToNullTime(s.PausedAt), s.BreakSeconds,
		s.Performance.OrdersHandled, s.Performance.RevenueCents, s.Performance.TablesServed,
		s.Performance.AvgServiceSeconds, s.Performance.ErrorCount)
	return db.Unavailable(err)
}

// End finalizes the shift iff it is still open.
func (r *PostgresRepository) End(ctx context.Context, id string, status domain.Status, reason domain.EndReason, at time.Time, perf domain.Performance) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shifts
		 SET status = $2, end_reason = $3, ended_at = $4, paused_at = NULL,
		     orders_handled = $5, revenue_cents = $6, tables_served = $7,
		     avg_service_secs = $8, error_count = $9
		 WHERE id = $1 AND status IN ($10, $11)`,
		id, status, reason, at,
		perf.OrdersHandled, perf.RevenueCents, perf.TablesServed, perf.AvgServiceSeconds, perf.ErrorCount,
		domain.StatusActive, domain.StatusPaused)
	return oneRow(res, err)
}

// Pause transitions active -> paused, recording the pause start.
func (r *PostgresRepository) Pause(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shifts SET status = $3, paused_at = $4 WHERE id = $1 AND status = $2`,
		id, domain.StatusActive, domain.StatusPaused, at)
	return oneRow(res, err)
}

// Resume transitions paused -> active, folding the pause into break time.
func (r *PostgresRepository) Resume(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shifts
		 SET status = $3, break_seconds = break_seconds + EXTRACT(EPOCH FROM ($4 - paused_at))::int, paused_at = NULL
		 WHERE id = $1 AND status = $2`,
		id, domain.StatusPaused, domain.StatusActive, at)
	return oneRow(res, err)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*domain.Shift, error) {
	var s *domain.Shift
	err := db.WithReadRetry(ctx, func() error {
		row := r.db.QueryRowContext(ctx, query, args...)
		var err error
		s, err = scanShift(row)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanShift(row *sql.Row) (*domain.Shift, error) {
	var s domain.Shift
	var reason sql.NullString
	var endedAt, pausedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.UserName, &s.UserRole, &s.Status, &reason,
		&s.StartedAt, &endedAt, &pausedAt, &s.BreakSeconds,
		&s.Performance.OrdersHandled, &s.Performance.RevenueCents, &s.Performance.TablesServed,
		&s.Performance.AvgServiceSeconds, &s.Performance.ErrorCount); err != nil {
		return nil, err
	}
	s.EndReason = domain.EndReason(reason.String)
	s.EndedAt = nullTimeToPtr(endedAt)
	s.PausedAt = nullTimeToPtr(pausedAt)
	return &s, nil
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
