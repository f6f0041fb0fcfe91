// Package billing prices token usage against the configured per-model rates
// and enforces per-tenant daily spend caps.
package billing

import (
	"log/slog"
	"math"

	"github.com/sertdev/ccgate/internal/config"
	"github.com/sertdev/ccgate/internal/usage"
	"github.com/sertdev/ccgate/internal/wildcard"
)

// Cost breaks a request's price into the four token categories. All values
// are USD rounded to 6 decimal places; Total is the component sum rounded
// once more.
type Cost struct {
	Input         float64
	Output        float64
	CacheCreation float64
	CacheRead     float64
	Total         float64
}

// Pricer maps (model, token counts) to cost using the pricing table from the
// current config snapshot. Table keys are glob patterns; lookup is
// exact-first, then first wildcard match in document order.
type Pricer struct {
	cfg *config.Store
}

// NewPricer creates a Pricer reading rates from cfg.
func NewPricer(cfg *config.Store) *Pricer {
	return &Pricer{cfg: cfg}
}

// Cost prices u for model. An unpriced model costs zero and logs a warning —
// billing gaps should be visible, not fatal.
func (p *Pricer) Cost(model string, u usage.TokenUsage) Cost {
	pricing := p.cfg.Snapshot().Pricing

	pattern, ok := wildcard.FindFirst(pricing.Patterns, model)
	if !ok {
		slog.Warn("no pricing entry for model", "model", model)
		return Cost{}
	}
	rates := pricing.Table[pattern]

	c := Cost{
		Input:         round6(float64(u.InputTokens) / 1000 * rates.Input),
		Output:        round6(float64(u.OutputTokens) / 1000 * rates.Output),
		CacheCreation: round6(float64(u.CacheCreationTokens) / 1000 * rates.CacheCreation),
		CacheRead:     round6(float64(u.CacheReadTokens) / 1000 * rates.CacheRead),
	}
	c.Total = round6(c.Input + c.Output + c.CacheCreation + c.CacheRead)
	return c
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
