package repository

import (
	"context"
	"database/sql"
	"errors"

	"shiftwise/backend/internal/db"
	"shiftwise/backend/internal/staff/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a staff repository that uses the given db for persistence.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// GetByID returns the staff member for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	var s domain.Staff
	err := db.WithReadRetry(ctx, func() error {
		row := r.db.QueryRowContext(ctx,
			`SELECT id, name, role, status, created_at FROM staff WHERE id = $1`, id)
		return row.Scan(&s.ID, &s.Name, &s.Role, &s.Status, &s.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Create persists the staff member. The member must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Staff) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO staff (id, name, role, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Name, s.Role, s.Status, s.CreatedAt)
	return db.Unavailable(err)
}

// SetStatus updates the staff member's status.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status domain.StaffStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE staff SET status = $2 WHERE id = $1`, id, status)
	return db.Unavailable(err)
}
