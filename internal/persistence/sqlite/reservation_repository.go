package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-reservation/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using SQLite.
// Tags and attendees live in child tables and are written atomically with the
// reservation row.
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const reservationColumns = `id, room_id, user_id, title, description, start_time, end_time, status,
	catering_requested, is_recurring, recurrence_pattern, recurrence_end_type,
	recurrence_count, recurrence_end_date, parent_id, created_at, updated_at`

// CreateReservation inserts a reservation together with its tag and attendee
// rows in one transaction.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if !reservation.Start.Before(reservation.End) {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO reservations (` + reservationColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		var recurrenceEndDate *string
		if reservation.RecurrenceEndDate != nil {
			formatted := formatTime(*reservation.RecurrenceEndDate)
			recurrenceEndDate = &formatted
		}

		_, err := r.helper.ExecTx(tx, query,
			reservation.ID,
			reservation.RoomID,
			reservation.UserID,
			reservation.Title,
			reservation.Description,
			formatTime(reservation.Start),
			formatTime(reservation.End),
			reservation.Status,
			boolToInt(reservation.CateringRequested),
			boolToInt(reservation.IsRecurring),
			reservation.RecurrencePattern,
			reservation.RecurrenceEndType,
			reservation.RecurrenceCount,
			recurrenceEndDate,
			reservation.ParentID,
			formatTime(reservation.CreatedAt),
			formatTime(reservation.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		for _, tag := range reservation.Tags {
			if _, err := r.helper.ExecTx(tx,
				`INSERT INTO reservation_tags (reservation_id, tag) VALUES (?, ?)`,
				reservation.ID, tag,
			); err != nil {
				return r.mapper.MapError(err)
			}
		}
		for _, email := range reservation.Attendees {
			if _, err := r.helper.ExecTx(tx,
				`INSERT INTO reservation_attendees (reservation_id, email) VALUES (?, ?)`,
				reservation.ID, email,
			); err != nil {
				return r.mapper.MapError(err)
			}
		}

		return nil
	})
}

// GetReservation retrieves a reservation by ID, including tags and attendees.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`

	row := r.helper.QueryRow(ctx, query, id)
	reservation, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}

	if err := r.loadChildren(ctx, []*persistence.Reservation{&reservation}); err != nil {
		return persistence.Reservation{}, err
	}

	return reservation, nil
}

// UpdateReservationStatus sets the status and updated_at of one reservation.
func (r *ReservationRepository) UpdateReservationStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(updatedAt), id,
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

// ListReservations returns reservations matching the filter, ordered by
// start time then ID.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.RoomID != nil {
		conditions = append(conditions, "room_id = ?")
		args = append(args, *filter.RoomID)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.OverlapStart != nil && filter.OverlapEnd != nil {
		// Half-open overlap on the text-encoded timestamps.
		conditions = append(conditions, "start_time < ? AND end_time > ?")
		args = append(args, formatTime(*filter.OverlapEnd), formatTime(*filter.OverlapStart))
	}
	if len(filter.AnyTags) > 0 {
		conditions = append(conditions,
			"id IN (SELECT reservation_id FROM reservation_tags WHERE tag IN ("+placeholders(len(filter.AnyTags))+"))")
		for _, tag := range filter.AnyTags {
			args = append(args, tag)
		}
	}
	if len(filter.ExcludeTags) > 0 {
		conditions = append(conditions,
			"id NOT IN (SELECT reservation_id FROM reservation_tags WHERE tag IN ("+placeholders(len(filter.ExcludeTags))+"))")
		for _, tag := range filter.ExcludeTags {
			args = append(args, tag)
		}
	}
	if filter.IsRecurring != nil {
		conditions = append(conditions, "is_recurring = ?")
		args = append(args, boolToInt(*filter.IsRecurring))
	}
	if filter.ParentID != nil {
		conditions = append(conditions, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}
	if filter.ExactStart != nil {
		conditions = append(conditions, "start_time = ?")
		args = append(args, formatTime(*filter.ExactStart))
	}
	if filter.ExactEnd != nil {
		conditions = append(conditions, "end_time = ?")
		args = append(args, formatTime(*filter.ExactEnd))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	refs := make([]*persistence.Reservation, len(reservations))
	for i := range reservations {
		refs[i] = &reservations[i]
	}
	if err := r.loadChildren(ctx, refs); err != nil {
		return nil, err
	}

	return reservations, nil
}

// loadChildren populates Tags and Attendees for the given reservations.
func (r *ReservationRepository) loadChildren(ctx context.Context, reservations []*persistence.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	byID := make(map[string]*persistence.Reservation, len(reservations))
	ids := make([]interface{}, 0, len(reservations))
	for _, reservation := range reservations {
		byID[reservation.ID] = reservation
		ids = append(ids, reservation.ID)
	}
	marks := placeholders(len(ids))

	tagRows, err := r.helper.Query(ctx,
		`SELECT reservation_id, tag FROM reservation_tags WHERE reservation_id IN (`+marks+`) ORDER BY tag`,
		ids...,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var reservationID, tag string
		if err := tagRows.Scan(&reservationID, &tag); err != nil {
			return r.mapper.MapError(err)
		}
		if reservation, ok := byID[reservationID]; ok {
			reservation.Tags = append(reservation.Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return r.mapper.MapError(err)
	}

	attendeeRows, err := r.helper.Query(ctx,
		`SELECT reservation_id, email FROM reservation_attendees WHERE reservation_id IN (`+marks+`) ORDER BY email`,
		ids...,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer attendeeRows.Close()
	for attendeeRows.Next() {
		var reservationID, email string
		if err := attendeeRows.Scan(&reservationID, &email); err != nil {
			return r.mapper.MapError(err)
		}
		if reservation, ok := byID[reservationID]; ok {
			reservation.Attendees = append(reservation.Attendees, email)
		}
	}
	return attendeeRows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation       persistence.Reservation
		description       sql.NullString
		startStr          string
		endStr            string
		catering          int
		isRecurring       int
		pattern           sql.NullString
		endType           sql.NullString
		count             sql.NullInt64
		endDateStr        sql.NullString
		parentID          sql.NullString
		createdAtStr      string
		updatedAtStr      string
	)

	err := row.Scan(
		&reservation.ID,
		&reservation.RoomID,
		&reservation.UserID,
		&reservation.Title,
		&description,
		&startStr,
		&endStr,
		&reservation.Status,
		&catering,
		&isRecurring,
		&pattern,
		&endType,
		&count,
		&endDateStr,
		&parentID,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	if description.Valid {
		reservation.Description = &description.String
	}
	reservation.CateringRequested = catering != 0
	reservation.IsRecurring = isRecurring != 0
	if pattern.Valid {
		reservation.RecurrencePattern = &pattern.String
	}
	if endType.Valid {
		reservation.RecurrenceEndType = &endType.String
	}
	if count.Valid {
		value := int(count.Int64)
		reservation.RecurrenceCount = &value
	}
	if parentID.Valid {
		reservation.ParentID = &parentID.String
	}

	if reservation.Start, err = parseTime(startStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.End, err = parseTime(endStr); err != nil {
		return persistence.Reservation{}, err
	}
	if endDateStr.Valid {
		endDate, err := parseTime(endDateStr.String)
		if err != nil {
			return persistence.Reservation{}, err
		}
		reservation.RecurrenceEndDate = &endDate
	}
	if reservation.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Reservation{}, err
	}

	return reservation, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
