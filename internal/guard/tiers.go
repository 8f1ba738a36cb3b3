package guard

import "time"

// Tier names a rate-limit budget applied to a class of routes.
type Tier string

const (
	// TierGeneral covers ordinary API traffic.
	TierGeneral Tier = "general"
	// TierAI covers AI endpoints; stricter because of downstream cost.
	TierAI Tier = "ai"
	// TierAuth covers credential endpoints; very low ceiling against brute force.
	TierAuth Tier = "auth"
)

// TierConfig is one tier's fixed-window budget.
type TierConfig struct {
	MaxRequests int
	Window      time.Duration
}

// TierSet maps tier names to budgets. Unknown tiers fall back to general.
type TierSet map[Tier]TierConfig

// DefaultTiers returns the base budgets. Deployments override via env config.
func DefaultTiers() TierSet {
	return TierSet{
		TierGeneral: {MaxRequests: 100, Window: time.Minute},
		TierAI:      {MaxRequests: 20, Window: time.Minute},
		TierAuth:    {MaxRequests: 5, Window: time.Minute},
	}
}

func (ts TierSet) lookup(tier Tier) TierConfig {
	if cfg, ok := ts[tier]; ok {
		return cfg
	}
	return ts[TierGeneral]
}
