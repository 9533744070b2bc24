package service

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tenantdesk/internal/config"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
)

// Catalog reads prices from the hot-reloadable renewal config on every call.
type Catalog struct {
	cfg *config.RenewalConfigHolder
}

func NewCatalog(cfg *config.RenewalConfigHolder) plandomain.Catalog {
	return &Catalog{cfg: cfg}
}

func (c *Catalog) PriceOf(tier plandomain.Tier) decimal.Decimal {
	plan, ok := c.Lookup(tier)
	if !ok {
		return decimal.Zero
	}
	return plan.MonthlyPrice
}

func (c *Catalog) Lookup(tier plandomain.Tier) (plandomain.Plan, bool) {
	want := normalizeTier(string(tier))
	for _, plan := range c.Plans() {
		if plan.Tier == want {
			return plan, true
		}
	}
	return plandomain.Plan{}, false
}

func (c *Catalog) ParseTier(raw string) (plandomain.Tier, error) {
	tier := normalizeTier(raw)
	if tier == "" {
		return "", plandomain.ErrInvalidTier
	}
	if _, ok := c.Lookup(tier); !ok {
		return "", plandomain.ErrInvalidTier
	}
	return tier, nil
}

func (c *Catalog) Plans() []plandomain.Plan {
	cfg := c.cfg.Get()
	plans := make([]plandomain.Plan, 0, len(cfg.Plans))
	for _, p := range cfg.Plans {
		name := strings.TrimSpace(p.Name)
		tier := normalizeTier(p.Tier)
		if name == "" {
			name = string(tier)
		}
		plans = append(plans, plandomain.Plan{
			Tier:         tier,
			Name:         name,
			MonthlyPrice: decimal.NewFromFloat(p.MonthlyPrice).Round(2),
		})
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].MonthlyPrice.LessThan(plans[j].MonthlyPrice)
	})
	return plans
}

func (c *Catalog) TrialTier() plandomain.Tier {
	return normalizeTier(c.cfg.Get().TrialTier)
}

func normalizeTier(raw string) plandomain.Tier {
	return plandomain.Tier(strings.ToLower(strings.TrimSpace(raw)))
}
