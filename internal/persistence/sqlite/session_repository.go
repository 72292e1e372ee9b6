package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const sessionColumns = `id, user_id, token, expires_at, created_at, updated_at, revoked_at`

// CreateSession inserts a new session row.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.Token == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	var revokedAt *string
	if session.RevokedAt != nil {
		formatted := formatTime(*session.RevokedAt)
		revokedAt = &formatted
	}

	_, err := r.helper.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
		revokedAt,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// GetSession retrieves a session by its opaque token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token = ?`

	session, err := scanSession(r.helper.QueryRow(ctx, query, token))
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// UpdateSession rewrites a session row, keyed by ID. Used for token rotation.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" {
		return persistence.ErrNotFound
	}

	var revokedAt *string
	if session.RevokedAt != nil {
		formatted := formatTime(*session.RevokedAt)
		revokedAt = &formatted
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE sessions SET token = ?, expires_at = ?, updated_at = ?, revoked_at = ? WHERE id = ?`,
		session.Token,
		formatTime(session.ExpiresAt),
		formatTime(session.UpdatedAt),
		revokedAt,
		session.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// RevokeSession stamps a session as revoked.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	if token == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE token = ? AND revoked_at IS NULL`,
		formatTime(revokedAt), formatTime(revokedAt), token,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// DeleteExpiredSessions removes sessions that expired before the reference time.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`,
		formatTime(reference),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session      persistence.Session
		expiresAtStr string
		createdAtStr string
		updatedAtStr string
		revokedAtStr sql.NullString
	)

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAtStr,
		&createdAtStr,
		&updatedAtStr,
		&revokedAtStr,
	)
	if err != nil {
		return persistence.Session{}, err
	}

	if session.ExpiresAt, err = parseTime(expiresAtStr); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Session{}, err
	}
	if revokedAtStr.Valid {
		revokedAt, err := parseTime(revokedAtStr.String)
		if err != nil {
			return persistence.Session{}, err
		}
		session.RevokedAt = &revokedAt
	}

	return session, nil
}
