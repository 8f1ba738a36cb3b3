package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdeck/platform/internal/audit"
	"github.com/opsdeck/platform/internal/domain"
	"github.com/opsdeck/platform/internal/gate"
	"github.com/opsdeck/platform/internal/handler"
	"github.com/opsdeck/platform/internal/repository"
)

// SecurityHandler exposes the security-operations endpoints: audited bulk
// data operations, the rate-limit escape hatch and the audit trail view.
// Business CRUD lives in the document store behind its own handlers, not here.
type SecurityHandler struct {
	gatekeeper *gate.Gatekeeper
	recorder   *audit.Recorder
	eventRepo  repository.SecurityEventRepository
	pool       *pgxpool.Pool
}

// NewSecurityHandler creates the security admin handler.
func NewSecurityHandler(gatekeeper *gate.Gatekeeper, recorder *audit.Recorder, eventRepo repository.SecurityEventRepository, pool *pgxpool.Pool) *SecurityHandler {
	return &SecurityHandler{gatekeeper: gatekeeper, recorder: recorder, eventRepo: eventRepo, pool: pool}
}

type exportRequest struct {
	Scope string `json:"scope"`
}

// TriggerExport records a data_export audit event for the requesting admin
// and acknowledges; the export itself runs out of band.
func (h *SecurityHandler) TriggerExport(w http.ResponseWriter, r *http.Request) {
	identity, _ := gate.IdentityFromContext(r.Context())

	var req exportRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid export request body"))
		return
	}
	if req.Scope == "" {
		handler.RespondError(w, domain.ErrValidation("scope is required"))
		return
	}

	h.recorder.DataExport(identity.Subject, "data export requested",
		map[string]interface{}{"scope": req.Scope})
	handler.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "export scheduled"})
}

type anonymizeRequest struct {
	SubjectID string `json:"subjectId"`
}

// TriggerAnonymization records a data_anonymization audit event and
// acknowledges.
func (h *SecurityHandler) TriggerAnonymization(w http.ResponseWriter, r *http.Request) {
	identity, _ := gate.IdentityFromContext(r.Context())

	var req anonymizeRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid anonymization request body"))
		return
	}
	if req.SubjectID == "" {
		handler.RespondError(w, domain.ErrValidation("subjectId is required"))
		return
	}

	h.recorder.DataAnonymization(identity.Subject, "anonymization requested for "+req.SubjectID)
	handler.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "anonymization scheduled"})
}

// ResetRateLimit clears one identifier's rate windows. Idempotent: resetting
// an identifier with no window is a no-op.
func (h *SecurityHandler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	if identifier == "" {
		handler.RespondError(w, domain.ErrValidation("identifier is required"))
		return
	}
	h.gatekeeper.Reset(r.Context(), identifier)
	handler.RespondJSON(w, http.StatusNoContent, nil)
}

// ListSecurityEvents returns recent audit records for the admin view.
func (h *SecurityHandler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			handler.RespondError(w, domain.ErrValidation("since must be RFC3339"))
			return
		}
		since = parsed
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			handler.RespondError(w, domain.ErrValidation("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	if h.pool == nil {
		handler.RespondError(w, domain.ErrServiceUnavailable("audit store unavailable", nil))
		return
	}
	events, err := h.eventRepo.ListRecent(r.Context(), h.pool, since, limit)
	if err != nil {
		handler.RespondError(w, domain.Classify(err, false))
		return
	}
	if events == nil {
		events = []domain.SecurityEvent{}
	}
	handler.RespondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
