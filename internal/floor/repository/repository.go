package repository

import (
	"context"
	"time"

	"shiftwise/backend/internal/floor/domain"
)

// Reader exposes the read-only floor state the shift coordinator snapshots.
// The order/payment screens own the underlying tables; the core never writes them.
type Reader interface {
	// PendingOrderIDs returns ids of the staff member's open orders.
	PendingOrderIDs(ctx context.Context, staffID string) ([]string, error)
	// OccupiedTableIDs returns ids of tables currently held by the staff member.
	OccupiedTableIDs(ctx context.Context, staffID string) ([]string, error)
	// CashSummary summarizes the staff member's drawer since the given time.
	CashSummary(ctx context.Context, staffID string, since time.Time) (*domain.CashSummary, error)
	// ShiftMetrics computes performance counters for the staff member over [from, to].
	ShiftMetrics(ctx context.Context, staffID string, from, to time.Time) (*domain.Metrics, error)
}
