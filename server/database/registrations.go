package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/topi314/campus-events/internal/attendance"
)

const attendeeColumns = `r.id AS registration_id, r.student_id,
	TRIM(p.first_name || ' ' || p.last_name) AS name, p.email,
	COALESCE(a.student_number, '') AS student_number,
	COALESCE(r.registration_time, NOW()) AS registration_time,
	r.attended,
	COALESCE(r.points_awarded, FALSE) AS points_awarded,
	CASE WHEN COALESCE(r.points_awarded, FALSE) THEN e.points ELSE 0 END AS awarded_points,
	r.check_in_time`

const attendeeJoins = `JOIN events e ON e.id = r.event_id
	JOIN profiles p ON p.id = r.student_id
	LEFT JOIN accounts a ON a.profile_id = r.student_id`

type attendeeRow struct {
	ID            string     `db:"registration_id"`
	StudentID     string     `db:"student_id"`
	Name          string     `db:"name"`
	Email         string     `db:"email"`
	StudentNumber string     `db:"student_number"`
	RegisteredAt  time.Time  `db:"registration_time"`
	Attended      *bool      `db:"attended"`
	PointsAwarded bool       `db:"points_awarded"`
	Points        int        `db:"awarded_points"`
	CheckInTime   *time.Time `db:"check_in_time"`
}

func (r attendeeRow) toAttendee() attendance.Attendee {
	return attendance.Attendee{
		ID:            r.ID,
		StudentID:     r.StudentID,
		Name:          r.Name,
		Email:         r.Email,
		StudentNumber: r.StudentNumber,
		RegisteredAt:  r.RegisteredAt,
		Status:        attendance.StatusFromAttended(r.Attended),
		PointsAwarded: r.PointsAwarded,
		Points:        r.Points,
		CheckedInAt:   r.CheckInTime,
	}
}

// Register signs a student up for an event that has not ended yet.
func (d *Database) Register(ctx context.Context, eventID string, studentID string, now time.Time) (*attendance.Attendee, error) {
	if !validID(eventID) {
		return nil, ErrNotFound
	}
	if !validID(studentID) {
		return nil, ErrNotAStudent
	}

	var attendee *attendance.Attendee
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if event.Ended(now) {
			return ErrEventEnded
		}

		var isStudent bool
		if err = tx.GetContext(ctx, &isStudent, "SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)", studentID); err != nil {
			return fmt.Errorf("failed to check student: %w", err)
		}
		if !isStudent {
			return ErrNotAStudent
		}

		attendee, err = insertRegistration(ctx, tx, *event, studentID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return attendee, nil
}

// AddAttendee registers a student on behalf of the organizer. A student
// profile without password is created when the email is unknown.
func (d *Database) AddAttendee(ctx context.Context, eventID string, details attendance.Details) (*attendance.Attendee, error) {
	if !validID(eventID) {
		return nil, ErrNotFound
	}
	now := time.Now()

	var attendee *attendance.Attendee
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var profile struct {
			ID       string   `db:"id"`
			UserType UserType `db:"user_type"`
		}
		err = tx.GetContext(ctx, &profile, "SELECT id, user_type FROM profiles WHERE email = LOWER($1)", details.Email)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			profile.ID = uuid.NewString()
			profile.UserType = UserTypeStudent
			if err = insertAccount(ctx, tx, NewAccount{
				Profile: Profile{
					ID:        profile.ID,
					Email:     details.Email,
					FirstName: details.FirstName,
					LastName:  details.LastName,
					UserType:  UserTypeStudent,
					CreatedAt: now,
					UpdatedAt: now,
				},
				StudentNumber: details.StudentNumber,
			}); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("failed to get profile by email: %w", err)
		}
		if profile.UserType != UserTypeStudent {
			return ErrNotAStudent
		}

		attendee, err = insertRegistration(ctx, tx, *event, profile.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return attendee, nil
}

func lockEvent(ctx context.Context, tx *sqlx.Tx, eventID string) (*Event, error) {
	if !validID(eventID) {
		return nil, ErrNotFound
	}

	var event Event
	if err := tx.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1 FOR UPDATE`, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	return &event, nil
}

// insertRegistration expects the event row to be locked by the transaction.
func insertRegistration(ctx context.Context, tx *sqlx.Tx, event Event, studentID string, now time.Time) (*attendance.Attendee, error) {
	var registered bool
	if err := tx.GetContext(ctx, &registered, "SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id = $1 AND student_id = $2)", event.ID, studentID); err != nil {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	if registered {
		return nil, ErrAlreadyRegistered
	}

	if event.Capacity != nil {
		var registered int
		if err := tx.GetContext(ctx, &registered, "SELECT COUNT(*) FROM registrations WHERE event_id = $1", event.ID); err != nil {
			return nil, fmt.Errorf("failed to count registrations: %w", err)
		}
		if registered >= *event.Capacity {
			return nil, ErrEventFull
		}
	}

	registrationID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registrations (id, event_id, student_id, registration_time, points_awarded)
		VALUES ($1, $2, $3, $4, FALSE)`,
		registrationID, event.ID, studentID, now,
	); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to insert registration: %w", err)
	}

	var row attendeeRow
	if err := tx.GetContext(ctx, &row, `SELECT `+attendeeColumns+` FROM registrations r `+attendeeJoins+` WHERE r.id = $1`, registrationID); err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	attendee := row.toAttendee()
	return &attendee, nil
}

func (d *Database) GetRoster(ctx context.Context, eventID string) ([]attendance.Attendee, error) {
	if !validID(eventID) {
		return nil, nil
	}

	query := `
		SELECT ` + attendeeColumns + `
		FROM registrations r
		` + attendeeJoins + `
		WHERE r.event_id = $1
		ORDER BY r.registration_time, r.id
	`

	var rows []attendeeRow
	if err := d.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}

	attendees := make([]attendance.Attendee, 0, len(rows))
	for _, row := range rows {
		attendees = append(attendees, row.toAttendee())
	}
	return attendees, nil
}

func (d *Database) GetAttendee(ctx context.Context, registrationID string) (*EventAttendee, error) {
	if !validID(registrationID) {
		return nil, ErrNotFound
	}

	query := `
		SELECT r.event_id, ` + attendeeColumns + `
		FROM registrations r
		` + attendeeJoins + `
		WHERE r.id = $1
	`

	var row struct {
		EventID string `db:"event_id"`
		attendeeRow
	}
	if err := d.db.GetContext(ctx, &row, query, registrationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attendee: %w", err)
	}
	return &EventAttendee{
		EventID:  row.EventID,
		Attendee: row.toAttendee(),
	}, nil
}

func (d *Database) GetStudentRegistrations(ctx context.Context, studentID string) ([]StudentRegistration, error) {
	query := `
		SELECT ` + eventColumns + `, ` + attendeeColumns + `
		FROM registrations r
		` + attendeeJoins + `
		WHERE r.student_id = $1
		ORDER BY e.start_time, e.id
	`

	var rows []struct {
		Event
		attendeeRow
	}
	if err := d.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("failed to get student registrations: %w", err)
	}

	registrations := make([]StudentRegistration, 0, len(rows))
	for _, row := range rows {
		registrations = append(registrations, StudentRegistration{
			Event:    row.Event,
			Attendee: row.toAttendee(),
		})
	}
	return registrations, nil
}

func (d *Database) CheckIn(ctx context.Context, eventID string, registrationID string) (*AttendanceResult, error) {
	return d.updateAttendance(ctx, eventID, registrationID, (*attendance.Roster).MarkCheckedIn)
}

func (d *Database) MarkNoShow(ctx context.Context, eventID string, registrationID string) (*AttendanceResult, error) {
	return d.updateAttendance(ctx, eventID, registrationID, (*attendance.Roster).MarkNoShow)
}

type transition func(r *attendance.Roster, id string) (attendance.Attendee, bool, error)

// updateAttendance locks the registration, applies the transition and
// awards points and badges when the attendee becomes checked-in.
func (d *Database) updateAttendance(ctx context.Context, eventID string, registrationID string, apply transition) (*AttendanceResult, error) {
	if !validID(eventID) || !validID(registrationID) {
		return nil, attendance.ErrAttendeeNotFound
	}

	var result AttendanceResult
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			SELECT ` + attendeeColumns + `, e.points AS event_points
			FROM registrations r
			` + attendeeJoins + `
			WHERE r.id = $1 AND r.event_id = $2
			FOR UPDATE OF r
		`
		var row struct {
			attendeeRow
			EventPoints int `db:"event_points"`
		}
		if err := tx.GetContext(ctx, &row, query, registrationID, eventID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return attendance.ErrAttendeeNotFound
			}
			return fmt.Errorf("failed to lock registration: %w", err)
		}

		before := row.toAttendee()
		roster := attendance.NewRoster(eventID, row.EventPoints, []attendance.Attendee{before})
		after, changed, err := apply(roster, registrationID)
		if err != nil {
			return err
		}
		result.Attendee = after
		result.Changed = changed

		if changed {
			if _, err = tx.ExecContext(ctx, `
				UPDATE registrations
				SET attended = $2, check_in_time = $3, points_awarded = $4
				WHERE id = $1`,
				registrationID, after.Status.Attended(), after.CheckedInAt, after.PointsAwarded,
			); err != nil {
				return fmt.Errorf("failed to update registration: %w", err)
			}
		}

		if changed && after.PointsAwarded && !before.PointsAwarded {
			result.PointsAdded = after.Points
			if err = tx.GetContext(ctx, &result.TotalPoints, `
				UPDATE students SET total_points = COALESCE(total_points, 0) + $2
				WHERE id = $1
				RETURNING total_points`,
				after.StudentID, after.Points,
			); err != nil {
				return fmt.Errorf("failed to add points: %w", err)
			}

			if err = tx.SelectContext(ctx, &result.NewBadges, `
				WITH granted AS (
					INSERT INTO student_badges (student_id, badge_id, earned_at)
					SELECT $1, b.id, NOW() FROM badges b WHERE b.points_required <= $2
					ON CONFLICT (student_id, badge_id) DO NOTHING
					RETURNING badge_id
				)
				SELECT b.id, b.name, COALESCE(b.description, '') AS description, COALESCE(b.image_url, '') AS image_url, b.points_required
				FROM badges b
				JOIN granted g ON g.badge_id = b.id
				ORDER BY b.points_required, b.name`,
				after.StudentID, result.TotalPoints,
			); err != nil {
				return fmt.Errorf("failed to grant badges: %w", err)
			}
			return nil
		}

		if err = tx.GetContext(ctx, &result.TotalPoints, "SELECT COALESCE(total_points, 0) FROM students WHERE id = $1", after.StudentID); err != nil {
			return fmt.Errorf("failed to get total points: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkPendingNoShows marks every attendee of the event that is still
// registered as no-show and returns how many were changed.
func (d *Database) MarkPendingNoShows(ctx context.Context, eventID string) (int, error) {
	if !validID(eventID) {
		return 0, nil
	}

	var marked int
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			SELECT ` + attendeeColumns + `
			FROM registrations r
			` + attendeeJoins + `
			WHERE r.event_id = $1 AND r.attended IS NULL
			FOR UPDATE OF r
		`
		var rows []attendeeRow
		if err := tx.SelectContext(ctx, &rows, query, eventID); err != nil {
			return fmt.Errorf("failed to lock pending registrations: %w", err)
		}

		attendees := make([]attendance.Attendee, 0, len(rows))
		for _, row := range rows {
			attendees = append(attendees, row.toAttendee())
		}
		roster := attendance.NewRoster(eventID, 0, attendees)

		for _, a := range attendees {
			updated, changed, err := roster.MarkNoShow(a.ID)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if _, err = tx.ExecContext(ctx, "UPDATE registrations SET attended = $2, points_awarded = $3 WHERE id = $1",
				updated.ID, updated.Status.Attended(), updated.PointsAwarded,
			); err != nil {
				return fmt.Errorf("failed to mark no-show: %w", err)
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}
