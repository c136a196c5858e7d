package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const eventColumns = `e.id, e.title, COALESCE(e.description, '') AS description, e.category, e.location,
	e.start_time, e.end_time, e.capacity, e.points, COALESCE(e.image_url, '') AS image_url, e.organizer_id,
	COALESCE(e.created_at, NOW()) AS created_at, COALESCE(e.updated_at, NOW()) AS updated_at`

const eventCountColumns = `COUNT(r.id) AS registered,
	COUNT(r.id) FILTER (WHERE r.attended) AS checked_in`

func (d *Database) InsertEvent(ctx context.Context, event Event) error {
	query := `
		INSERT INTO events (id, title, description, category, location, start_time, end_time, capacity, points, image_url, organizer_id, created_at, updated_at)
		VALUES (:id, :title, NULLIF(:description, ''), :category, :location, :start_time, :end_time, :capacity, :points, NULLIF(:image_url, ''), :organizer_id, :created_at, :updated_at)
	`
	if _, err := d.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// UpdateEvent replaces the event details. The points of an event can no
// longer change once any attendee has been awarded them.
func (d *Database) UpdateEvent(ctx context.Context, event Event) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockEvent(ctx, tx, event.ID)
		if err != nil {
			return err
		}

		if current.Points != event.Points {
			var awarded bool
			if err = tx.GetContext(ctx, &awarded, "SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id = $1 AND points_awarded)", event.ID); err != nil {
				return fmt.Errorf("failed to check awarded points: %w", err)
			}
			if awarded {
				return ErrPointsLocked
			}
		}

		query := `
			UPDATE events
			SET title = :title,
				description = NULLIF(:description, ''),
				category = :category,
				location = :location,
				start_time = :start_time,
				end_time = :end_time,
				capacity = :capacity,
				points = :points,
				image_url = NULLIF(:image_url, ''),
				updated_at = :updated_at
			WHERE id = :id
		`
		if _, err = tx.NamedExecContext(ctx, query, event); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		return nil
	})
}

func (d *Database) GetEvent(ctx context.Context, eventID string) (*EventWithCounts, error) {
	if !validID(eventID) {
		return nil, ErrNotFound
	}

	query := `
		SELECT ` + eventColumns + `, ` + eventCountColumns + `
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
		WHERE e.id = $1
		GROUP BY e.id
	`

	var event EventWithCounts
	if err := d.db.GetContext(ctx, &event, query, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

func (d *Database) GetEvents(ctx context.Context, filter EventFilter) ([]EventWithCounts, error) {
	query := `
		SELECT ` + eventColumns + `, ` + eventCountColumns + `
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
		WHERE ($1 = '' OR e.organizer_id::TEXT = $1)
		AND (CARDINALITY($2::TEXT[]) = 0 OR e.category::TEXT = ANY($2::TEXT[]))
		AND ($3 = '' OR e.title ILIKE '%' || $3 || '%' OR e.location ILIKE '%' || $3 || '%' OR e.description ILIKE '%' || $3 || '%')
		AND ($4::TIMESTAMPTZ IS NULL OR e.start_time >= $4)
		AND ($5::TIMESTAMPTZ IS NULL OR e.start_time < $5)
		GROUP BY e.id
		ORDER BY e.start_time, e.title, e.id
		LIMIT NULLIF($6, 0)
	`

	categories := make([]string, 0, len(filter.Categories))
	for _, c := range filter.Categories {
		categories = append(categories, string(c))
	}

	var events []EventWithCounts
	if err := d.db.SelectContext(ctx, &events, query,
		filter.OrganizerID,
		pq.Array(categories),
		filter.Search,
		nullTime(filter.From),
		nullTime(filter.To),
		filter.Limit,
	); err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}

// GetCategoryCounts counts events starting at or after from per category.
// An empty organizerID counts events of all organizers.
func (d *Database) GetCategoryCounts(ctx context.Context, organizerID string, from time.Time) ([]CategoryCount, error) {
	query := `
		SELECT e.category, COUNT(*) AS count
		FROM events e
		WHERE ($1 = '' OR e.organizer_id::TEXT = $1)
		AND ($2::TIMESTAMPTZ IS NULL OR e.start_time >= $2)
		GROUP BY e.category
		ORDER BY e.category
	`

	var counts []CategoryCount
	if err := d.db.SelectContext(ctx, &counts, query, organizerID, nullTime(from)); err != nil {
		return nil, fmt.Errorf("failed to get category counts: %w", err)
	}
	return counts, nil
}

// GetEventsPendingNoShow returns events that ended before endedBefore and still
// have attendees in the registered state.
func (d *Database) GetEventsPendingNoShow(ctx context.Context, endedBefore time.Time) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events e
		WHERE e.end_time < $1
		AND EXISTS (SELECT 1 FROM registrations r WHERE r.event_id = e.id AND r.attended IS NULL)
		ORDER BY e.end_time
	`

	var events []Event
	if err := d.db.SelectContext(ctx, &events, query, endedBefore); err != nil {
		return nil, fmt.Errorf("failed to get events pending no-show: %w", err)
	}
	return events, nil
}

func (d *Database) GetOrganizerMonthlyCounts(ctx context.Context, organizerID string, from time.Time) ([]MonthlyCount, error) {
	query := `
		SELECT DATE_TRUNC('month', e.start_time) AS month,
			COUNT(DISTINCT e.id) AS events,
			COUNT(r.id) FILTER (WHERE r.attended) AS attendees
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
		WHERE e.organizer_id = $1 AND e.start_time >= $2
		GROUP BY month
		ORDER BY month
	`

	var counts []MonthlyCount
	if err := d.db.SelectContext(ctx, &counts, query, organizerID, from); err != nil {
		return nil, fmt.Errorf("failed to get organizer monthly counts: %w", err)
	}
	return counts, nil
}

func (d *Database) GetStudentMonthlyCounts(ctx context.Context, studentID string, from time.Time) ([]MonthlyCount, error) {
	query := `
		SELECT DATE_TRUNC('month', e.start_time) AS month,
			COUNT(*) AS events,
			0 AS attendees
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.student_id = $1 AND r.attended AND e.start_time >= $2
		GROUP BY month
		ORDER BY month
	`

	var counts []MonthlyCount
	if err := d.db.SelectContext(ctx, &counts, query, studentID, from); err != nil {
		return nil, fmt.Errorf("failed to get student monthly counts: %w", err)
	}
	return counts, nil
}
