package repository

import (
	"context"

	"shiftwise/backend/internal/staff/domain"
)

// Repository defines persistence for staff members.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Staff, error)
	Create(ctx context.Context, s *domain.Staff) error
	SetStatus(ctx context.Context, id string, status domain.StaffStatus) error
}
