package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/opsdeck/platform/internal/audit"
	"github.com/opsdeck/platform/internal/auth"
	"github.com/opsdeck/platform/internal/domain"
	"github.com/opsdeck/platform/internal/gate"
	"github.com/opsdeck/platform/internal/guard"
	"github.com/opsdeck/platform/internal/handler"
	adminhandler "github.com/opsdeck/platform/internal/handler/admin"
	"github.com/opsdeck/platform/internal/infra"
	"github.com/opsdeck/platform/internal/repository"
)

// RouterDeps holds everything NewRouter needs. Business is the downstream
// handler for the feature API (projects, tickets, bookings, AI chat); it runs
// behind the gatekeeper and may be nil in gatekeeper-only deployments.
type RouterDeps struct {
	Config   *infra.Config
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Producer *infra.KafkaProducer
	Logger   *slog.Logger
	Business http.Handler
}

// Assembled exposes the wired components main needs beyond the router.
type Assembled struct {
	Router     chi.Router
	Gatekeeper *gate.Gatekeeper
	Recorder   *audit.Recorder
	Store      guard.WindowStore
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) (*Assembled, error) {
	cfg := deps.Config
	logger := deps.Logger

	tiers := guard.TierSet{
		guard.TierGeneral: {MaxRequests: cfg.GeneralMaxRequests, Window: time.Duration(cfg.GeneralWindowSecs) * time.Second},
		guard.TierAI:      {MaxRequests: cfg.AIMaxRequests, Window: time.Duration(cfg.AIWindowSecs) * time.Second},
		guard.TierAuth:    {MaxRequests: cfg.AuthMaxRequests, Window: time.Duration(cfg.AuthWindowSecs) * time.Second},
	}

	var store guard.WindowStore
	if cfg.RateLimitBackend == "redis" && deps.Redis != nil {
		store = guard.NewRedisWindowStore(deps.Redis, tiers, logger)
	} else {
		store = guard.NewMemoryWindowStore(tiers)
	}

	// Verifiers: JWTs from the identity provider, plus optional static
	// service keys.
	jwtVerifier := auth.NewJWTVerifier(cfg.JWTSecret, 24*time.Hour)
	apiKeyVerifier, err := auth.ParseAPIKeys(cfg.ServiceAPIKeys)
	if err != nil {
		return nil, err
	}
	var verifier auth.Verifier = jwtVerifier
	if apiKeyVerifier != nil {
		verifier = auth.NewMultiVerifier(jwtVerifier, apiKeyVerifier)
	}

	eventRepo := repository.NewPgSecurityEventRepository()
	var eventStore audit.EventStore
	if deps.Pool != nil {
		eventStore = audit.NewPgEventStore(deps.Pool, eventRepo)
	}
	recorder := audit.NewRecorder(eventStore, deps.Producer, cfg.AuditTopic,
		cfg.Environment, cfg.AuditSinkBudget, logger)

	gatekeeper := gate.New(store, verifier, recorder, cfg.VerifyTimeout, logger)

	securityAdmin := adminhandler.NewSecurityHandler(gatekeeper, recorder, eventRepo, deps.Pool)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)
	r.Use(handler.Throttle(cfg.IngressRPS, cfg.IngressBurst))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handler.RespondError(w, domain.ErrNotFound("route", req.URL.Path))
	})

	// Health (no gatekeeper)
	r.Get("/health", handler.HealthHandler(deps.Pool))

	// Security operations, admin role required by the /api/admin prefix policy.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(gatekeeper.Protect())

		r.Post("/export", securityAdmin.TriggerExport)
		r.Post("/anonymize", securityAdmin.TriggerAnonymization)
		r.Get("/security-events", securityAdmin.ListSecurityEvents)
		r.Delete("/ratelimits/{identifier}", securityAdmin.ResetRateLimit)
	})

	// Everything else under /api runs behind the gatekeeper with the static
	// prefix policy; the business API is an external collaborator here.
	if deps.Business != nil {
		r.Route("/api", func(r chi.Router) {
			r.Use(gatekeeper.Protect())
			r.Mount("/", deps.Business)
		})
	}

	return &Assembled{
		Router:     r,
		Gatekeeper: gatekeeper,
		Recorder:   recorder,
		Store:      store,
	}, nil
}
