package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func (d *Database) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	err := d.db.GetContext(ctx, &session, "SELECT * FROM sessions WHERE session_id = $1", sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.ExpiresAt.Before(time.Now()) {
		return nil, ErrSessionExpired
	}

	return &session, nil
}

func (d *Database) CreateSession(ctx context.Context, session Session) error {
	query := `
		INSERT INTO sessions (session_id, session_profile_id, session_created_at, session_expires_at)
		VALUES (:session_id, :session_profile_id, :session_created_at, :session_expires_at)
	`
	if _, err := d.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (d *Database) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = $1", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (d *Database) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	rs, err := d.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}
	return rs.RowsAffected()
}

func (d *Database) CreatePasswordReset(ctx context.Context, reset PasswordReset) error {
	query := `
		INSERT INTO password_resets (password_reset_token, password_reset_profile_id, password_reset_expires_at)
		VALUES (:password_reset_token, :password_reset_profile_id, :password_reset_expires_at)
	`
	if _, err := d.db.NamedExecContext(ctx, query, reset); err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}
	return nil
}

// UsePasswordReset marks the token as used and returns the profile it belongs to.
// A token can only be used once.
func (d *Database) UsePasswordReset(ctx context.Context, token string) (string, error) {
	var profileID string
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE password_resets
			SET password_reset_used_at = NOW()
			WHERE password_reset_token = $1
			AND password_reset_used_at IS NULL
			AND password_reset_expires_at > NOW()
			RETURNING password_reset_profile_id
		`
		if err := tx.GetContext(ctx, &profileID, query, token); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrResetTokenInvalid
			}
			return fmt.Errorf("failed to use password reset: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_profile_id = $1", profileID); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return profileID, nil
}

func (d *Database) DeleteExpiredPasswordResets(ctx context.Context) (int64, error) {
	rs, err := d.db.ExecContext(ctx, "DELETE FROM password_resets WHERE password_reset_expires_at < NOW() OR password_reset_used_at IS NOT NULL")
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup password resets: %w", err)
	}
	return rs.RowsAffected()
}
