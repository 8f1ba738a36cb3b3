package gate

import (
	"strings"

	"github.com/opsdeck/platform/internal/domain"
	"github.com/opsdeck/platform/internal/guard"
)

// Policy is the gatekeeper configuration for one route class.
type Policy struct {
	Tier         guard.Tier
	RequireAuth  bool
	RequiredRole string
}

// Route policy is data, not code: prefix tables resolved once per request.
// Longest-prefix entries are listed first where prefixes overlap.

type tierRule struct {
	prefix string
	tier   guard.Tier
}

type authRule struct {
	prefix string
	role   string
}

var tierRules = []tierRule{
	{"/api/ai", guard.TierAI},
	{"/api/auth", guard.TierAuth},
}

var authRules = []authRule{
	{"/api/admin", domain.RoleAdmin},
	{"/api/account", ""},
	{"/api/projects", ""},
	{"/api/customers", ""},
	{"/api/tickets", ""},
	{"/api/bookings", ""},
	{"/api/ai", ""},
}

// PolicyFor resolves the static route policy for a request path.
func PolicyFor(path string) Policy {
	p := Policy{Tier: guard.TierGeneral}
	for _, r := range tierRules {
		if strings.HasPrefix(path, r.prefix) {
			p.Tier = r.tier
			break
		}
	}
	for _, r := range authRules {
		if strings.HasPrefix(path, r.prefix) {
			p.RequireAuth = true
			p.RequiredRole = r.role
			break
		}
	}
	return p
}
