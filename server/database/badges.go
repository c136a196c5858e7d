package database

import (
	"context"
	"fmt"
)

const badgeColumns = `b.id, b.name, COALESCE(b.description, '') AS description, COALESCE(b.image_url, '') AS image_url, b.points_required`

func (d *Database) GetBadges(ctx context.Context) ([]Badge, error) {
	var badges []Badge
	if err := d.db.SelectContext(ctx, &badges, `SELECT `+badgeColumns+` FROM badges b ORDER BY b.points_required, b.name`); err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}
	return badges, nil
}

func (d *Database) InsertBadge(ctx context.Context, badge Badge) error {
	query := `
		INSERT INTO badges (id, name, description, image_url, points_required)
		VALUES (:id, :name, NULLIF(:description, ''), NULLIF(:image_url, ''), :points_required)
	`
	if _, err := d.db.NamedExecContext(ctx, query, badge); err != nil {
		return fmt.Errorf("failed to insert badge: %w", err)
	}
	return nil
}

func (d *Database) GetStudentBadges(ctx context.Context, studentID string) ([]EarnedBadge, error) {
	query := `
		SELECT ` + badgeColumns + `, COALESCE(sb.earned_at, NOW()) AS earned_at
		FROM student_badges sb
		JOIN badges b ON b.id = sb.badge_id
		WHERE sb.student_id = $1
		ORDER BY sb.earned_at, b.name
	`

	var badges []EarnedBadge
	if err := d.db.SelectContext(ctx, &badges, query, studentID); err != nil {
		return nil, fmt.Errorf("failed to get student badges: %w", err)
	}
	return badges, nil
}
