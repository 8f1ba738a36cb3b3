package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeck/platform/internal/domain"
	"github.com/opsdeck/platform/internal/guard"
	"github.com/opsdeck/platform/internal/infra"
	"github.com/opsdeck/platform/internal/repository"
)

// EventStore durably appends one security event.
type EventStore interface {
	Insert(ctx context.Context, event domain.SecurityEvent) error
}

// PgEventStore appends events to the security_events table.
type PgEventStore struct {
	pool *pgxpool.Pool
	repo repository.SecurityEventRepository
}

// NewPgEventStore creates a postgres-backed event store.
func NewPgEventStore(pool *pgxpool.Pool, repo repository.SecurityEventRepository) *PgEventStore {
	return &PgEventStore{pool: pool, repo: repo}
}

func (s *PgEventStore) Insert(ctx context.Context, event domain.SecurityEvent) error {
	return s.repo.Insert(ctx, s.pool, event)
}

// Recorder persists security events best-effort. Writes are dispatched off
// the request path with their own deadline; a store failure is logged in full
// and swallowed. Audit logging is advisory, never transactional: it can lose
// an event under total outage but can never fail the guarded request.
type Recorder struct {
	store    EventStore
	producer *infra.KafkaProducer
	topic    string
	logger   *slog.Logger
	env      string
	timeout  time.Duration
	breaker  *guard.CircuitBreaker
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewRecorder creates a recorder. store and producer may be nil; events then
// go to the local log only.
func NewRecorder(store EventStore, producer *infra.KafkaProducer, topic string, env string, timeout time.Duration, logger *slog.Logger) *Recorder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Recorder{
		store:    store,
		producer: producer,
		topic:    topic,
		logger:   logger,
		env:      env,
		timeout:  timeout,
		breaker:  guard.NewCircuitBreaker(5, 30*time.Second),
		now:      time.Now,
	}
}

// Record stamps the event and dispatches the write without awaiting it. The
// write uses a fresh context so a cancelled request does not cancel it.
func (r *Recorder) Record(event domain.SecurityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Timestamp = r.now().UTC()
	event.Environment = r.env

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("audit write panic", "panic", rec, "kind", event.Kind)
			}
		}()
		r.persist(event)
	}()
}

func (r *Recorder) persist(event domain.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	stored := false
	if r.store != nil && r.breaker.Allow() {
		if err := r.store.Insert(ctx, event); err != nil {
			r.breaker.RecordFailure()
			r.logger.Error("audit store write failed, event logged locally",
				"error", err, "event", event)
		} else {
			r.breaker.RecordSuccess()
			stored = true
		}
	}
	if !stored {
		r.logger.Warn("security event",
			"kind", event.Kind, "severity", event.Severity, "subject", event.Subject,
			"source_ip", event.SourceIP, "path", event.Path, "detail", event.Detail)
	}

	if r.producer != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			err = r.producer.Publish(ctx, r.topic, []byte(event.Kind), payload)
		}
		if err != nil {
			r.logger.Warn("audit mirror publish failed", "error", err, "kind", event.Kind)
		}
	}
}

// Flush waits for in-flight writes. Used by shutdown and tests.
func (r *Recorder) Flush() { r.wg.Wait() }

// Convenience wrappers fix the severity and message shape per event kind.
// All funnel through Record.

func (r *Recorder) AuthFailure(sourceIP, path, detail string) {
	r.Record(domain.SecurityEvent{
		Kind:     domain.EventAuthFailure,
		Severity: domain.SeverityMedium,
		SourceIP: sourceIP,
		Path:     path,
		Detail:   detail,
	})
}

func (r *Recorder) InvalidToken(sourceIP, path, detail string) {
	r.Record(domain.SecurityEvent{
		Kind:     domain.EventInvalidToken,
		Severity: domain.SeverityMedium,
		SourceIP: sourceIP,
		Path:     path,
		Detail:   detail,
	})
}

func (r *Recorder) UnauthorizedAccess(subject, sourceIP, path, detail string) {
	r.Record(domain.SecurityEvent{
		Kind:     domain.EventUnauthorizedAccess,
		Severity: domain.SeverityHigh,
		Subject:  subject,
		SourceIP: sourceIP,
		Path:     path,
		Detail:   detail,
	})
}

func (r *Recorder) PermissionDenied(subject, path, resource string) {
	r.Record(domain.SecurityEvent{
		Kind:     domain.EventPermissionDenied,
		Severity: domain.SeverityHigh,
		Subject:  subject,
		Path:     path,
		Detail:   "permission denied for " + resource,
	})
}

func (r *Recorder) RateLimitExceeded(sourceIP, path string) {
	r.Record(domain.SecurityEvent{
		Kind:     domain.EventRateLimitExceeded,
		Severity: domain.SeverityMedium,
		SourceIP: sourceIP,
		Path:     path,
		Detail:   "rate limit exceeded",
	})
}

func (r *Recorder) DataExport(subject, detail string, metadata map[string]interface{}) {
	r.Record(domain.SecurityEvent{
		Kind:     domain.EventDataExport,
		Severity: domain.SeverityMedium,
		Subject:  subject,
		Detail:   detail,
		Metadata: metadata,
	})
}

func (r *Recorder) DataAnonymization(subject, detail string) {
	r.Record(domain.SecurityEvent{
		Kind:     domain.EventDataAnonymization,
		Severity: domain.SeverityHigh,
		Subject:  subject,
		Detail:   detail,
	})
}
