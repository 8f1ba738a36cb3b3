package gate

import (
	"net/http"
	"strconv"

	"github.com/opsdeck/platform/internal/domain"
	"github.com/opsdeck/platform/internal/handler"
)

// Middleware wraps Evaluate as chi middleware. Every response, success or
// failure, carries the rate-limit headers so callers can always see their
// current budget.
func (g *Gatekeeper) Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := g.Evaluate(r, opts)
			setRateHeaders(w, decision)

			if !decision.Authorized {
				switch decision.Err.Code {
				case domain.CodeRateLimited:
					w.Header().Set("Retry-After", strconv.Itoa(decision.RateResult.RetryAfter(g.now())))
				case domain.CodeAuthentication:
					w.Header().Set("WWW-Authenticate", "Bearer")
				}
				handler.RespondError(w, decision.Err)
				return
			}

			ctx := r.Context()
			if decision.Identity.Subject != "" {
				ctx = WithIdentity(ctx, decision.Identity)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Protect is shorthand for Middleware with the static route policy only.
func (g *Gatekeeper) Protect() func(http.Handler) http.Handler {
	return g.Middleware(Options{})
}

func setRateHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.RateResult.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.RateResult.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.RateResult.ResetAt.Unix(), 10))
}
