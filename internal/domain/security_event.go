package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the security event taxonomy. Append-only records; the
// set mirrors what the audit trail consumers query on.
type EventKind string

const (
	EventAuthFailure        EventKind = "auth_failure"
	EventUnauthorizedAccess EventKind = "unauthorized_access"
	EventPermissionDenied   EventKind = "permission_denied"
	EventRateLimitExceeded  EventKind = "rate_limit_exceeded"
	EventDataExport         EventKind = "data_export"
	EventDataAnonymization  EventKind = "data_anonymization"
	EventInvalidToken       EventKind = "invalid_token"
)

// Severity of a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is one append-only audit record. Timestamp and Environment
// are assigned by the recorder, not the caller.
type SecurityEvent struct {
	ID          uuid.UUID              `json:"id"`
	Kind        EventKind              `json:"kind"`
	Severity    Severity               `json:"severity"`
	Subject     string                 `json:"subject,omitempty"`
	SourceIP    string                 `json:"source_ip,omitempty"`
	Path        string                 `json:"path,omitempty"`
	Detail      string                 `json:"detail"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Environment string                 `json:"environment"`
	Timestamp   time.Time              `json:"timestamp"`
}
