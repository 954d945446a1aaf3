package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"shiftwise/backend/internal/db"
	"shiftwise/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

const sessionColumns = `id, user_id, device_fingerprint, token_digest, login_method,
	status, termination_reason, created_at, last_activity_at, expires_at, terminated_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s *domain.Session
	err := db.WithReadRetry(ctx, func() error {
		row := r.db.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
		var err error
		s, err = scanSession(row)
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

// ListActiveByUser returns all active sessions for the given user.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND status = $2`,
		userID, domain.StatusActive)
}

// Create persists the session. The session must have ID and TokenDigest set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	reason := sql.NullString{String: string(s.TerminationReason), Valid: s.TerminationReason != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, device_fingerprint, token_digest, login_method,
			status, termination_reason, created_at, last_activity_at, expires_at, terminated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.UserID, s.DeviceFingerprint, s.TokenDigest, s.LoginMethod,
		s.Status, reason, s.CreatedAt, s.LastActivityAt, s.ExpiresAt, timeToNullTime(s.TerminatedAt))
	return db.Unavailable(err)
}

// Terminate transitions the session to terminated iff it is still active.
func (r *PostgresRepository) Terminate(ctx context.Context, id string, reason domain.TerminationReason, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET status = $3, termination_reason = $4, terminated_at = $5
		 WHERE id = $1 AND status = $2`,
		id, domain.StatusActive, domain.StatusTerminated, reason, at)
	if err != nil {
		return false, db.Unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, db.Unavailable(err)
	}
	return n == 1, nil
}

// UpdateLastActivity sets the session's last-activity timestamp.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = $2 WHERE id = $1`, id, at)
	return db.Unavailable(err)
}

// UpdateExpiry sets expires_at iff the session is still active.
func (r *PostgresRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = $3 WHERE id = $1 AND status = $2`,
		id, domain.StatusActive, expiresAt)
	if err != nil {
		return false, db.Unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, db.Unavailable(err)
	}
	return n == 1, nil
}

// ListExpiredActive returns active sessions past either deadline, oldest activity first.
func (r *PostgresRepository) ListExpiredActive(ctx context.Context, now, idleBefore time.Time, limit int32) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 500
	}
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE status = $1 AND (expires_at < $2 OR last_activity_at < $3)
		 ORDER BY last_activity_at LIMIT $4`,
		domain.StatusActive, now, idleBefore, limit)
}

// PurgeTerminatedBefore deletes terminated sessions older than cutoff.
func (r *PostgresRepository) PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE status = $1 AND terminated_at < $2`,
		domain.StatusTerminated, cutoff)
	if err != nil {
		return 0, db.Unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, db.Unavailable(err)
	}
	return n, nil
}

// GetData returns the session's auxiliary key/value data.
func (r *PostgresRepository) GetData(ctx context.Context, sessionID string) (map[string]string, error) {
	data := make(map[string]string)
	err := db.WithReadRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx,
			`SELECT data_key, data_value FROM session_data WHERE session_id = $1`, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		clear(data)
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			data[k] = v
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveData upserts the given auxiliary key/value pairs for the session.
func (r *PostgresRepository) SaveData(ctx context.Context, sessionID string, data map[string]string) error {
	if len(data) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return db.Unavailable(err)
	}
	defer tx.Rollback()
	now := time.Now().UTC()
	for k, v := range data {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_data (session_id, data_key, data_value, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (session_id, data_key) DO UPDATE SET data_value = $3, updated_at = $4`,
			sessionID, k, v, now); err != nil {
			return db.Unavailable(err)
		}
	}
	return db.Unavailable(tx.Commit())
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Session, error) {
	var out []*domain.Session
	err := db.WithReadRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var s domain.Session
	var reason sql.NullString
	var terminatedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.DeviceFingerprint, &s.TokenDigest, &s.LoginMethod,
		&s.Status, &reason, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &terminatedAt); err != nil {
		return nil, err
	}
	s.TerminationReason = domain.TerminationReason(reason.String)
	s.TerminatedAt = nullTimeToPtr(terminatedAt)
	return &s, nil
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
