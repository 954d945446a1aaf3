package repository

import (
	"context"
	"time"

	"shiftwise/backend/internal/session/domain"
)

// Repository defines persistence for sessions and session-scoped auxiliary data.
//
// Terminate and UpdateExpiry are compare-and-set updates conditioned on the row
// still being active, so a terminate racing a validate cannot double-apply.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Terminate transitions the session to terminated iff it is still active.
	// Returns true when this call performed the transition.
	Terminate(ctx context.Context, id string, reason domain.TerminationReason, at time.Time) (bool, error)
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	// UpdateExpiry sets expires_at iff the session is still active.
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	// ListExpiredActive returns active sessions whose absolute deadline has
	// passed at now or whose last activity predates idleBefore.
	ListExpiredActive(ctx context.Context, now, idleBefore time.Time, limit int32) ([]*domain.Session, error)
	// PurgeTerminatedBefore deletes terminated sessions older than cutoff,
	// cascading their auxiliary data. Returns the number of rows removed.
	PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	GetData(ctx context.Context, sessionID string) (map[string]string, error)
	SaveData(ctx context.Context, sessionID string, data map[string]string) error
}
