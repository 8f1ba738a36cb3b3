package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opsdeck/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SecurityEventRepository provides append-only access to security_events.
// Rows are never updated or deleted by the application.
type SecurityEventRepository interface {
	// Insert appends one audit record.
	Insert(ctx context.Context, db DBTX, event domain.SecurityEvent) error

	// ListRecent returns events since the given time, newest first, for the
	// admin audit view.
	ListRecent(ctx context.Context, db DBTX, since time.Time, limit int) ([]domain.SecurityEvent, error)
}
