package repository

import (
	"context"
	"time"

	"shiftwise/backend/internal/shift/domain"
)

// Repository defines persistence for shifts. End, Pause, and Resume are
// compare-and-set updates so racing closers cannot double-finalize a shift.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Shift, error)
	// GetOpenByUser returns the user's active or paused shift, or nil.
	GetOpenByUser(ctx context.Context, userID string) (*domain.Shift, error)
	Create(ctx context.Context, s *domain.Shift) error
	// End finalizes the shift iff it is still open. Returns true when this
	// call performed the transition.
	End(ctx context.Context, id string, status domain.Status, reason domain.EndReason, at time.Time, perf domain.Performance) (bool, error)
	// Pause transitions active -> paused, recording the pause start.
	Pause(ctx context.Context, id string, at time.Time) (bool, error)
	// Resume transitions paused -> active, folding the pause into break time.
	Resume(ctx context.Context, id string, at time.Time) (bool, error)
}
