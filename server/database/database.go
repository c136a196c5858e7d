package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/topi314/gomigrate"
	"github.com/topi314/gomigrate/drivers/postgres"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrStudentNumberTaken = errors.New("student number already in use")
	ErrAlreadyRegistered  = errors.New("already registered for this event")
	ErrEventFull          = errors.New("event is full")
	ErrEventEnded         = errors.New("event has already ended")
	ErrNotAStudent        = errors.New("profile is not a student")
	ErrSessionExpired     = errors.New("session expired")
	ErrResetTokenInvalid  = errors.New("password reset token is invalid or expired")
	ErrPointsLocked       = errors.New("points cannot change after attendees have been awarded")
)

const uniqueViolation = "23505"

func New(cfg Config) (*Database, error) {
	return open(cfg.DataSourceName())
}

func open(dsn string) (*Database, error) {
	dbx, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = gomigrate.Migrate(ctx, dbx, postgres.New, migrations); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Database{
		db: dbx,
	}, nil
}

type Database struct {
	db *sqlx.DB
}

func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// validID reports whether id can reference a row. Every primary key is a UUID.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func (d *Database) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "failed to rollback transaction", slog.Any("err", err))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// uniqueConstraint returns the violated constraint name of a unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
