package billing

import (
	"fmt"

	"github.com/sertdev/ccgate/internal/config"
	"github.com/sertdev/ccgate/internal/usage"
)

// Decision is the outcome of a preflight limit check.
type Decision struct {
	Exceeded bool
	Message  string
}

// LimitGuard checks a tenant's spend-so-far plus the projected cost of the
// pending request against the tenant's daily cap. The check is advisory:
// concurrent requests can collectively overshoot the cap, and the next
// request is rejected instead — an accepted trade for append-only storage.
type LimitGuard struct {
	pricer *Pricer
	store  *usage.Store
}

// NewLimitGuard wires the guard to the pricer and usage store.
func NewLimitGuard(pricer *Pricer, store *usage.Store) *LimitGuard {
	return &LimitGuard{pricer: pricer, store: store}
}

// CheckExceeded decides whether the pending request for tenant would push
// today's spend past the cap. Tenants without a cap are never limited.
// projected is usually zero — callers rarely have a reliable pre-estimate —
// so the guard primarily catches tenants whose current spend already meets
// the cap.
func (g *LimitGuard) CheckExceeded(tenant *config.Tenant, model string, projected usage.TokenUsage) (Decision, error) {
	maxUSD := tenant.MaxUSD()
	if maxUSD == nil {
		return Decision{}, nil
	}

	todayCost, err := g.store.TodayCost(tenant.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("read today's usage for tenant %q: %w", tenant.ID, err)
	}

	projectedCost := g.pricer.Cost(model, projected).Total
	newTotal := todayCost + projectedCost
	if newTotal > *maxUSD {
		return Decision{
			Exceeded: true,
			Message: fmt.Sprintf("daily limit exceeded: current $%.6f + projected $%.6f exceeds $%.2f",
				todayCost, projectedCost, *maxUSD),
		}, nil
	}
	return Decision{}, nil
}
