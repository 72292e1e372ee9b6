package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations holds the ordered schema history. Entries are applied inside a
// transaction and recorded in schema_versions; never edit an applied entry,
// append a new one.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		features TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
		catering_requested INTEGER NOT NULL DEFAULT 0,
		is_recurring INTEGER NOT NULL DEFAULT 0,
		recurrence_pattern TEXT,
		recurrence_end_type TEXT,
		recurrence_count INTEGER,
		recurrence_end_date TEXT,
		parent_id TEXT REFERENCES reservations(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (start_time < end_time)
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_room_time
		ON reservations(room_id, start_time, end_time);
	CREATE INDEX IF NOT EXISTS idx_reservations_parent
		ON reservations(parent_id);
	CREATE INDEX IF NOT EXISTS idx_reservations_status
		ON reservations(status);

	CREATE TABLE IF NOT EXISTS reservation_tags (
		reservation_id TEXT NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
		tag TEXT NOT NULL,
		PRIMARY KEY (reservation_id, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_reservation_tags_tag
		ON reservation_tags(tag);

	CREATE TABLE IF NOT EXISTS reservation_attendees (
		reservation_id TEXT NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		PRIMARY KEY (reservation_id, email)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		revoked_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user
		ON sessions(user_id);
	`,
}

// Migrate brings the schema up to date, applying any entries past the
// recorded version.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	var current int
	err := pool.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_versions`).Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		ddl := migrations[i]
		err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(ddl); err != nil {
				return fmt.Errorf("apply migration %d: %w", version, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`,
				version,
			); err != nil {
				return fmt.Errorf("record migration %d: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
