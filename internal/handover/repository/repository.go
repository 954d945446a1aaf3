package repository

import (
	"context"
	"time"

	"shiftwise/backend/internal/handover/domain"
)

// Repository defines persistence for handovers. Complete and Reject are
// compare-and-set updates conditioned on the row still being pending, so
// exactly one terminal transition wins.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Handover, error)
	Create(ctx context.Context, h *domain.Handover) error
	// ListPendingExpiredBefore returns pending handovers whose expiry predates t.
	ListPendingExpiredBefore(ctx context.Context, t time.Time, limit int32) ([]*domain.Handover, error)
	// Complete transitions pending -> completed. Returns true when this call won.
	Complete(ctx context.Context, id string, at time.Time) (bool, error)
	// Reject transitions pending -> rejected with the given reason.
	Reject(ctx context.Context, id, reason string, at time.Time) (bool, error)
}
