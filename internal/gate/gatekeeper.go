package gate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opsdeck/platform/internal/audit"
	"github.com/opsdeck/platform/internal/auth"
	"github.com/opsdeck/platform/internal/domain"
	"github.com/opsdeck/platform/internal/guard"
)

// Options override the static route policy for a mount point. Zero values
// defer to the prefix tables.
type Options struct {
	RequireAuth  bool
	RequiredRole string
}

// Decision is the gatekeeper's verdict for one request. When Authorized is
// false, Err carries the mapped error and RateResult still describes the
// caller's current budget.
type Decision struct {
	Authorized bool
	Identity   domain.Identity
	RateResult guard.RateLimitResult
	Err        *domain.AppError
}

// Gatekeeper is the single entry point protected routes pass through before
// business logic: rate limit, then authentication, then role. The order is
// fixed: throttling an unauthenticated flood must not cost a verification,
// and a role means nothing without an identity.
type Gatekeeper struct {
	store         guard.WindowStore
	verifier      auth.Verifier
	recorder      *audit.Recorder
	logger        *slog.Logger
	verifyTimeout time.Duration
	now           func() time.Time
}

// New creates a gatekeeper. The verifier is constructed once and reused.
func New(store guard.WindowStore, verifier auth.Verifier, recorder *audit.Recorder, verifyTimeout time.Duration, logger *slog.Logger) *Gatekeeper {
	if verifyTimeout <= 0 {
		verifyTimeout = 5 * time.Second
	}
	return &Gatekeeper{
		store:         store,
		verifier:      verifier,
		recorder:      recorder,
		logger:        logger,
		verifyTimeout: verifyTimeout,
		now:           time.Now,
	}
}

// Evaluate runs the decision pipeline for one request.
func (g *Gatekeeper) Evaluate(r *http.Request, opts Options) Decision {
	path := r.URL.Path
	policy := PolicyFor(path)
	sourceIP := guard.SourceAddress(r)

	identifier := guard.ClientIdentifier(r)
	result := g.store.Check(r.Context(), policy.Tier, identifier)
	if !result.Allowed {
		g.recorder.RateLimitExceeded(sourceIP, path)
		return Decision{
			RateResult: result,
			Err:        domain.ErrRateLimited(result.RetryAfter(g.now())),
		}
	}

	requiredRole := policy.RequiredRole
	if opts.RequiredRole != "" {
		requiredRole = opts.RequiredRole
	}
	requireAuth := policy.RequireAuth || opts.RequireAuth || requiredRole != ""
	if !requireAuth {
		return Decision{Authorized: true, RateResult: result}
	}

	credential := bearerCredential(r)
	if credential == "" {
		g.recorder.AuthFailure(sourceIP, path, "missing bearer credential")
		return Decision{RateResult: result, Err: domain.ErrAuthentication("")}
	}

	// A hung identity provider must surface as an auth failure, not as
	// unbounded request latency.
	ctx, cancel := context.WithTimeout(r.Context(), g.verifyTimeout)
	defer cancel()

	identity, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		g.recorder.AuthFailure(sourceIP, path, "token verification failed")
		return Decision{RateResult: result, Err: domain.ErrAuthentication("")}
	}

	if requiredRole != "" && !auth.HasRole(identity, requiredRole) {
		g.recorder.UnauthorizedAccess(identity.Subject, sourceIP, path,
			"role "+requiredRole+" required")
		return Decision{RateResult: result, Err: domain.ErrAuthorization("")}
	}

	return Decision{Authorized: true, Identity: identity, RateResult: result}
}

// Reset clears one identifier's rate windows. Administrative escape hatch.
func (g *Gatekeeper) Reset(ctx context.Context, identifier string) {
	g.store.Reset(ctx, identifier)
}

func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
