package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const profileColumns = `p.id, p.email, p.first_name, p.last_name, COALESCE(p.avatar_url, '') AS avatar_url, p.user_type,
	COALESCE(p.created_at, NOW()) AS created_at, COALESCE(p.updated_at, NOW()) AS updated_at`

func (d *Database) CreateAccount(ctx context.Context, account NewAccount) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		return insertAccount(ctx, tx, account)
	})
}

func insertAccount(ctx context.Context, tx *sqlx.Tx, account NewAccount) error {
	account.Profile.Email = strings.ToLower(account.Profile.Email)

	query := `
		INSERT INTO profiles (id, email, first_name, last_name, avatar_url, user_type, created_at, updated_at)
		VALUES (:id, :email, :first_name, :last_name, NULLIF(:avatar_url, ''), :user_type, :created_at, :updated_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, account.Profile); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	var studentNumber *string
	if account.StudentNumber != "" {
		studentNumber = &account.StudentNumber
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO accounts (profile_id, password_hash, student_number) VALUES ($1, $2, $3)`,
		account.Profile.ID, account.PasswordHash, studentNumber,
	); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return ErrStudentNumberTaken
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	switch account.Profile.UserType {
	case UserTypeStudent:
		if _, err := tx.ExecContext(ctx, `INSERT INTO students (id, program, total_points, year) VALUES ($1, NULLIF($2, ''), 0, NULLIF($3, 0))`,
			account.Profile.ID, account.Program, account.Year,
		); err != nil {
			return fmt.Errorf("failed to insert student: %w", err)
		}
	case UserTypeOrganizer:
		if _, err := tx.ExecContext(ctx, `INSERT INTO organizers (id, department, position) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))`,
			account.Profile.ID, account.Department, account.Position,
		); err != nil {
			return fmt.Errorf("failed to insert organizer: %w", err)
		}
	}

	return nil
}

func (d *Database) GetProfile(ctx context.Context, profileID string) (*Profile, error) {
	var profile Profile
	if err := d.db.GetContext(ctx, &profile, `SELECT `+profileColumns+` FROM profiles p WHERE p.id = $1`, profileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (d *Database) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	var profile Profile
	if err := d.db.GetContext(ctx, &profile, `SELECT `+profileColumns+` FROM profiles p WHERE p.email = LOWER($1)`, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return &profile, nil
}

func (d *Database) GetCredentials(ctx context.Context, email string) (*Credentials, error) {
	query := `
		SELECT p.id, p.user_type, a.password_hash
		FROM profiles p
		JOIN accounts a ON a.profile_id = p.id
		WHERE p.email = LOWER($1) AND a.password_hash IS NOT NULL
	`

	var credentials Credentials
	if err := d.db.GetContext(ctx, &credentials, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &credentials, nil
}

func (d *Database) UpdatePassword(ctx context.Context, profileID string, passwordHash []byte) error {
	query := `
		INSERT INTO accounts (profile_id, password_hash) VALUES ($1, $2)
		ON CONFLICT (profile_id) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`
	if _, err := d.db.ExecContext(ctx, query, profileID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (d *Database) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	query := `
		SELECT ` + profileColumns + `,
			COALESCE(s.program, '') AS program,
			COALESCE(s.year, 0) AS year,
			COALESCE(s.total_points, 0) AS total_points,
			COALESCE(a.student_number, '') AS student_number
		FROM students s
		JOIN profiles p ON p.id = s.id
		LEFT JOIN accounts a ON a.profile_id = s.id
		WHERE s.id = $1
	`

	var student Student
	if err := d.db.GetContext(ctx, &student, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &student, nil
}

func (d *Database) GetOrganizer(ctx context.Context, organizerID string) (*Organizer, error) {
	query := `
		SELECT ` + profileColumns + `,
			COALESCE(o.department, '') AS department,
			COALESCE(o.position, '') AS position
		FROM organizers o
		JOIN profiles p ON p.id = o.id
		WHERE o.id = $1
	`

	var organizer Organizer
	if err := d.db.GetContext(ctx, &organizer, query, organizerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organizer: %w", err)
	}
	return &organizer, nil
}

func (d *Database) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	query := `
		SELECT p.id, p.first_name, p.last_name, COALESCE(p.avatar_url, '') AS avatar_url,
			COALESCE(s.total_points, 0) AS total_points,
			RANK() OVER (ORDER BY COALESCE(s.total_points, 0) DESC) AS rank
		FROM students s
		JOIN profiles p ON p.id = s.id
		ORDER BY rank, p.last_name, p.first_name, p.id
		LIMIT $1
	`

	var entries []LeaderboardEntry
	if err := d.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return entries, nil
}

func (d *Database) GetStudentRank(ctx context.Context, studentID string) (int, error) {
	query := `
		SELECT COUNT(*) + 1
		FROM students
		WHERE COALESCE(total_points, 0) > (SELECT COALESCE(total_points, 0) FROM students WHERE id = $1)
	`

	var rank int
	if err := d.db.GetContext(ctx, &rank, query, studentID); err != nil {
		return 0, fmt.Errorf("failed to get student rank: %w", err)
	}
	return rank, nil
}
