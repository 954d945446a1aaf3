package repository

import (
	"context"
	"database/sql"
	"time"

	"shiftwise/backend/internal/db"
	"shiftwise/backend/internal/floor/domain"
)

type PostgresReader struct {
	db *sql.DB
}

// NewPostgresReader returns a floor state reader over the given db.
func NewPostgresReader(d *sql.DB) *PostgresReader {
	return &PostgresReader{db: d}
}

// PendingOrderIDs returns ids of the staff member's open orders, oldest first.
func (r *PostgresReader) PendingOrderIDs(ctx context.Context, staffID string) ([]string, error) {
	return r.queryIDs(ctx,
		`SELECT id FROM orders WHERE staff_id = $1 AND status = $2 ORDER BY created_at`,
		staffID, domain.OrderStatusPending)
}

// OccupiedTableIDs returns ids of tables currently held by the staff member.
func (r *PostgresReader) OccupiedTableIDs(ctx context.Context, staffID string) ([]string, error) {
	return r.queryIDs(ctx,
		`SELECT id FROM restaurant_tables WHERE occupied_by = $1 ORDER BY label`, staffID)
}

// CashSummary summarizes the staff member's drawer since the given time.
func (r *PostgresReader) CashSummary(ctx context.Context, staffID string, since time.Time) (*domain.CashSummary, error) {
	var s domain.CashSummary
	err := db.WithReadRetry(ctx, func() error {
		row := r.db.QueryRowContext(ctx,
			`SELECT
				COALESCE(SUM(amount_cents) FILTER (WHERE kind = $3), 0),
				COALESCE(SUM(CASE
					WHEN kind IN ($3, $4) THEN amount_cents
					ELSE -amount_cents
				END), 0),
				COUNT(*) FILTER (WHERE kind <> $3)
			 FROM cash_movements
			 WHERE staff_id = $1 AND created_at >= $2`,
			staffID, since, domain.CashKindOpeningFloat, domain.CashKindSale)
		return row.Scan(&s.OpeningFloatCents, &s.CurrentFloatCents, &s.TransactionCount)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ShiftMetrics computes performance counters for the staff member over [from, to].
func (r *PostgresReader) ShiftMetrics(ctx context.Context, staffID string, from, to time.Time) (*domain.Metrics, error) {
	var m domain.Metrics
	err := db.WithReadRetry(ctx, func() error {
		row := r.db.QueryRowContext(ctx,
			`SELECT
				COUNT(*) FILTER (WHERE status = $4),
				COALESCE(SUM(total_cents) FILTER (WHERE status = $4), 0),
				COUNT(DISTINCT table_id) FILTER (WHERE table_id IS NOT NULL),
				COALESCE(AVG(EXTRACT(EPOCH FROM (closed_at - created_at))) FILTER (WHERE status = $4 AND closed_at IS NOT NULL), 0)::int,
				COUNT(*) FILTER (WHERE status = $5)
			 FROM orders
			 WHERE staff_id = $1 AND created_at >= $2 AND created_at <= $3`,
			staffID, from, to, domain.OrderStatusClosed, domain.OrderStatusVoided)
		return row.Scan(&m.OrdersHandled, &m.RevenueCents, &m.TablesServed, &m.AvgServiceSeconds, &m.ErrorCount)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresReader) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	var ids []string
	err := db.WithReadRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
