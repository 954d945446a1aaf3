package repository

import (
	"context"

	"shiftwise/backend/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	ListByEntity(ctx context.Context, entityType, entityID string, limit int32) ([]*domain.Event, error)
}
