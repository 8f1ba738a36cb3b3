package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opsdeck/platform/internal/domain"
)

// PgSecurityEventRepository implements SecurityEventRepository using pgx.
type PgSecurityEventRepository struct{}

// NewPgSecurityEventRepository creates a new PgSecurityEventRepository.
func NewPgSecurityEventRepository() *PgSecurityEventRepository {
	return &PgSecurityEventRepository{}
}

// Insert appends one audit record.
func (r *PgSecurityEventRepository) Insert(ctx context.Context, db DBTX, event domain.SecurityEvent) error {
	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			metadata = nil
		}
	}

	_, err := db.Exec(ctx,
		`INSERT INTO security_events
		   (id, kind, severity, subject, source_ip, path, detail, metadata, environment, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)`,
		event.ID, event.Kind, event.Severity, event.Subject, event.SourceIP,
		event.Path, event.Detail, metadata, event.Environment, event.Timestamp)
	return err
}

// ListRecent returns events since the given time, newest first.
func (r *PgSecurityEventRepository) ListRecent(ctx context.Context, db DBTX, since time.Time, limit int) ([]domain.SecurityEvent, error) {
	rows, err := db.Query(ctx,
		`SELECT id, kind, severity, COALESCE(subject, ''), COALESCE(source_ip, ''),
		        COALESCE(path, ''), detail, metadata, environment, created_at
		 FROM security_events
		 WHERE created_at >= $1
		 ORDER BY created_at DESC
		 LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		var ev domain.SecurityEvent
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Severity, &ev.Subject, &ev.SourceIP,
			&ev.Path, &ev.Detail, &metadata, &ev.Environment, &ev.Timestamp); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &ev.Metadata)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
