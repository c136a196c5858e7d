package database

import (
	"context"
	"fmt"
)

func (d *Database) InsertScan(ctx context.Context, scan Scan) error {
	query := `
		INSERT INTO scans (scan_id, scan_event_id, scan_registration_id, scan_scanned_by, scan_scanned_at, scan_success, scan_message)
		VALUES (:scan_id, :scan_event_id, :scan_registration_id, :scan_scanned_by, :scan_scanned_at, :scan_success, :scan_message)
	`
	if _, err := d.db.NamedExecContext(ctx, query, scan); err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

// GetScans returns the latest scans of an event, newest first.
func (d *Database) GetScans(ctx context.Context, eventID string, limit int) ([]ScanWithAttendee, error) {
	query := `
		SELECT s.*,
			COALESCE(TRIM(p.first_name || ' ' || p.last_name), '') AS name,
			COALESCE(p.email, '') AS email
		FROM scans s
		LEFT JOIN registrations r ON r.id = s.scan_registration_id
		LEFT JOIN profiles p ON p.id = r.student_id
		WHERE s.scan_event_id = $1
		ORDER BY s.scan_scanned_at DESC
		LIMIT NULLIF($2, 0)
	`

	var scans []ScanWithAttendee
	if err := d.db.SelectContext(ctx, &scans, query, eventID, limit); err != nil {
		return nil, fmt.Errorf("failed to get scans: %w", err)
	}
	return scans, nil
}
